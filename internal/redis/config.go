package redis

type RedisConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Database   int
	TLSEnabled bool
}
