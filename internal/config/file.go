package config

type fileConfig struct {
	Server  serverSection  `toml:"server" yaml:"server"`
	Account accountSection `toml:"account" yaml:"account"`
	Bot     botSection     `toml:"bot" yaml:"bot"`
	Plugins pluginSection  `toml:"plugins" yaml:"plugins"`
	Metrics metricsSection `toml:"metrics" yaml:"metrics"`
}

type serverSection struct {
	Host               string     `toml:"host" yaml:"host"`
	Port               int        `toml:"port" yaml:"port"`
	ConnectTimeout     string     `toml:"connect_timeout" yaml:"connect_timeout"`
	WriteTimeout       string     `toml:"write_timeout" yaml:"write_timeout"`
	MaxConnectAttempts int        `toml:"max_connect_attempts" yaml:"max_connect_attempts"`
	ReadBufferSize     int        `toml:"read_buffer_size" yaml:"read_buffer_size"`
	TLS                tlsSection `toml:"tls" yaml:"tls"`
}

type tlsSection struct {
	Enabled            bool   `toml:"enabled" yaml:"enabled"`
	ServerName         string `toml:"server_name" yaml:"server_name"`
	CAFile             string `toml:"ca_file" yaml:"ca_file"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

type accountSection struct {
	Email      string `toml:"email" yaml:"email"`
	Password   string `toml:"password" yaml:"password"`
	Status     string `toml:"status" yaml:"status"`
	Device     string `toml:"device" yaml:"device"`
	SpamFilter bool   `toml:"spam_filter" yaml:"spam_filter"`
}

type botSection struct {
	Reassemble          bool  `toml:"reassemble" yaml:"reassemble"`
	MaxInflatedSize     int64 `toml:"max_inflated_size" yaml:"max_inflated_size"`
	MaxPayloadBytes     int   `toml:"max_payload_bytes" yaml:"max_payload_bytes"`
	MaxHeaderBytes      int   `toml:"max_header_bytes" yaml:"max_header_bytes"`
	MaxPendingSequences int   `toml:"max_pending_sequences" yaml:"max_pending_sequences"`
	Authorized          []int `toml:"authorized" yaml:"authorized"`
	Blocked             []int `toml:"blocked" yaml:"blocked"`
}

type pluginSection struct {
	Workers       int    `toml:"workers" yaml:"workers"`
	QueueSize     int    `toml:"queue_size" yaml:"queue_size"`
	HandleTimeout string `toml:"handle_timeout" yaml:"handle_timeout"`
}

type metricsSection struct {
	Addr string `toml:"addr" yaml:"addr"`
}
