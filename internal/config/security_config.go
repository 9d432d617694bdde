package config

type SecurityConfig interface {
	GetBcryptCost() int
	GetHashConcurrency() int
}

type Security struct {
	BcryptCost      int `env:"BCRYPT_COST" envDefault:"10"`
	HashConcurrency int `env:"HASH_CONCURRENCY" envDefault:"0"`
}

var _ SecurityConfig = Security{}

func (s Security) GetBcryptCost() int {
	return s.BcryptCost
}

// GetHashConcurrency caps parallel password hashes. Zero means GOMAXPROCS.
func (s Security) GetHashConcurrency() int {
	return s.HashConcurrency
}
