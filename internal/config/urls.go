package config

// ServiceURLs contains URLs for the backend based on environment.
type ServiceURLs struct {
	// APIBaseURL is the base URL of the portal API, including the /api prefix.
	APIBaseURL string
}

// GetServiceURLs returns environment-appropriate backend URLs.
// API_URL, when set, takes precedence; see Config.APIBaseURL.
func (c *Config) GetServiceURLs() ServiceURLs {
	switch c.Environment.Environment {
	case NonProd:
		fallthrough
	case Prod:
		return ServiceURLs{
			APIBaseURL: "https://pp-api.dcorps.dev/api",
		}
	case Local:
		fallthrough
	default:
		return ServiceURLs{
			APIBaseURL: "http://localhost:8000/api",
		}
	}
}
