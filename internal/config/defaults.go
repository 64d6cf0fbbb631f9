package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8001
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = "json"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "/usr/local/var/mikake/catalog/products.json"
	}
	if cfg.Catalog.ReferencesDir == "" {
		cfg.Catalog.ReferencesDir = "/usr/local/var/mikake/references"
	}
	if cfg.Catalog.Extensions == nil {
		cfg.Catalog.Extensions = []string{".jpg", ".jpeg", ".png"}
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/mikake/models/mobilenetv3-small.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 576
	}
	if cfg.Embedding.ResizeSize == 0 {
		cfg.Embedding.ResizeSize = 256
	}
	if cfg.Embedding.CropSize == 0 {
		cfg.Embedding.CropSize = 224
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 50
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 2000
	}
}
