package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           inferproxy API
// @version         1.0
// @description     OpenAI-compatible gateway over a local inference engine and a cloud aggregator.
//
// @contact.name   inferproxy maintainers
// @contact.url    https://github.com/your-org/inferproxy
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
