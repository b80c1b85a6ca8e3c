// Package env handles .env files and variable resolution for scenario steps.
//
// It provides functionality for:
//   - Loading .env files and exporting them to the process environment
//   - Variable interpolation using {{variable}} syntax
//   - Environment lookups using {{$NAME}}
//   - Built-in generator calls such as {{randomDigits(10)}}
package env
