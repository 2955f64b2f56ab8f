package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           solverd API
// @version         1.0
// @description     HTTP API for local problem solving with on-device inference.
//
// @contact.name   solverd maintainers
// @contact.url    https://github.com/your-org/solverd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
