package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON Schema every config document must satisfy.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "duration": {
      "oneOf": [
        {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"},
        {"type": "integer", "minimum": 0}
      ]
    },
    "url": {"type": "string", "pattern": "^https?://"}
  },
  "properties": {
    "platform": {"type": "string", "enum": ["web", "browser", "android", "ios"]},
    "browser": {"type": "string", "enum": ["chrome", "firefox", "edge"]},
    "headless": {"type": "boolean"},
    "baseUrl": {"$ref": "#/definitions/url"},
    "gridUrl": {"$ref": "#/definitions/url"},
    "appiumUrl": {"$ref": "#/definitions/url"},
    "validateSSL": {"type": "boolean"},
    "proxy": {"type": "string"},
    "implicitWait": {"$ref": "#/definitions/duration"},
    "pageLoadTimeout": {"$ref": "#/definitions/duration"},
    "explicitWait": {"$ref": "#/definitions/duration"},
    "pollInterval": {"$ref": "#/definitions/duration"},
    "testTimeout": {"$ref": "#/definitions/duration"},
    "releaseTimeout": {"$ref": "#/definitions/duration"},
    "screenshotDir": {"type": "string", "minLength": 1},
    "screenshotEachStep": {"type": "boolean"},
    "maxRetries": {"type": "integer", "minimum": 0, "maximum": 10},
    "concurrency": {"type": "integer", "minimum": 1, "maximum": 256},
    "provisionRate": {"type": "number", "minimum": 0},
    "bail": {"type": "boolean"},
    "reporters": {
      "type": "array",
      "items": {"type": "string", "enum": ["console", "json", "junit", "tap", "html"]}
    },
    "outputDir": {"type": "string"},
    "noColor": {"type": "boolean"},
    "android": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "deviceName": {"type": "string"},
        "platformVersion": {"type": "string"},
        "appPath": {"type": "string"},
        "appPackage": {"type": "string"},
        "appActivity": {"type": "string"}
      }
    },
    "ios": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "deviceName": {"type": "string"},
        "platformVersion": {"type": "string"},
        "appPath": {"type": "string"}
      }
    },
    "history": {
      "type": "object",
      "additionalProperties": false,
      "properties": {"path": {"type": "string"}}
    },
    "notify": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "on": {"type": "string", "enum": ["always", "failure", "success", "recovery"]},
        "slackWebhook": {"$ref": "#/definitions/url"},
        "slackChannel": {"type": "string"},
        "teamsWebhook": {"$ref": "#/definitions/url"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "listen": {"type": "string"},
        "file": {"type": "string"}
      }
    },
    "tracing": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "file": {"type": "string"}
      }
    },
    "log": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "warning", "error"]},
        "format": {"type": "string", "enum": ["console", "json"]},
        "file": {"type": "string"},
        "maxSize": {"type": "integer", "minimum": 0},
        "maxBackups": {"type": "integer", "minimum": 0},
        "maxAge": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(Schema)

// ErrInvalidConfig wraps every schema violation.
var ErrInvalidConfig = errors.New("invalid config")

// ValidationError lists schema violations, one per field.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate checks a decoded JSON or YAML document against Schema.
func Validate(doc any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, desc := range result.Errors() {
		verr.Problems = append(verr.Problems, desc.String())
	}
	return verr
}
