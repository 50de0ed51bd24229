package rabbitmq

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	URL      string `json:"url" validate:"required,url"`
	Queue    string `json:"queue" validate:"required"`
	Exchange string `json:"exchange"`
}

var validate = validator.New()

func (c *Config) Validate() error {
	return validate.Struct(c)
}

// GetConnectionString omits credentials.
func (c *Config) GetConnectionString() string {
	if parsedURL, err := url.Parse(c.URL); err == nil {
		return fmt.Sprintf("rabbitmq://%s/%s", parsedURL.Host, c.Queue)
	}
	return "rabbitmq://***"
}

func (c *Config) GetType() string {
	return "rabbitmq"
}
