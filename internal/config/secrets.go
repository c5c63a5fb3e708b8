package config

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log: every credential
// and credential-bearing URL is replaced with "***".
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	for _, s := range []*string{
		&out.Wallet.PrivateKey,
		&out.Wallet.KeyPassword,
		&out.Relay.SigningKey,
		&out.Chain.RPCURL,
		&out.Postgres.DSN,
		&out.Postgres.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.APIKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	} {
		if *s != "" {
			*s = redacted
		}
	}
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Liquidation.FeeTiers = append([]uint32(nil), cfg.Liquidation.FeeTiers...)
	return out
}
