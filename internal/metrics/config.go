package metrics

const defaultNamespace = "thermals"

type Config struct {
	Namespace string
	Enabled   bool
}

func DefaultConfig() Config {
	return Config{
		Namespace: defaultNamespace,
		Enabled:   true,
	}
}
