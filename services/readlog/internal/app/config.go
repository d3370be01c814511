package app

import "readlog/services/readlog/internal/config"

// ConfigFromFile maps the loaded file configuration onto app settings.
func ConfigFromFile(cfg config.FileConfig) Config {
	return Config{
		Store:                  cfg.StoreConfig(),
		Language:               cfg.LanguageTag(),
		SuggestEnabled:         cfg.SuggestEnabled != nil && *cfg.SuggestEnabled,
		SuggestBaseURL:         cfg.SuggestBaseURL,
		SuggestCoversURL:       cfg.SuggestCoversURL,
		SuggestTimeout:         cfg.SuggestTimeout(),
		SuggestDebounce:        cfg.SuggestDebounce(),
		SuggestMinChars:        cfg.SuggestMinChars,
		SuggestLimit:           cfg.SuggestLimit,
		SuggestCacheSize:       cfg.SuggestCacheSize,
		AMQPURL:                cfg.AMQPURL,
		AMQPExchange:           cfg.AMQPExchange,
		AnnounceStream:         cfg.AnnounceStream,
		AnnounceStreamAddr:     cfg.AnnounceStreamAddr,
		AnnounceStreamPassword: cfg.RedisPassword,
	}
}
