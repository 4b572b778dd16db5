package main

import "time"

type Config struct {
	Host                      string        `env:"HOST,default=0.0.0.0"`
	Port                      int           `env:"PORT,default=8080"`
	LogLevel                  string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	MailboxSize               int           `env:"MAILBOX_SIZE,default=256"`
	ConnectionBufferSize      int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout               time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval           time.Duration `env:"RESTART_INTERVAL,default=3s"`
	StoreRetries              int           `env:"STORE_RETRIES,default=3"`
	StatsInterval             time.Duration `env:"STATS_INTERVAL,default=30s"`
	MaxContentLength          int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	MaxAttachmentBytes        int           `env:"MAX_ATTACHMENT_BYTES,default=5242880"`
	MaxFrameBytes             int64         `env:"MAX_FRAME_BYTES,default=6291456"`
	EnableModeration          bool          `env:"ENABLE_MODERATION,default=true"`
	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	JWTSecret                 string        `env:"JWT_SECRET"`
}
