// Package docs holds the OpenAPI annotations for the wordfmt server.
//
// wordfmt API
//
//	@title			wordfmt API
//	@version		1.0
//	@description	AI-assisted document formatting: derive formatting rules, reformat HTML and build .docx output.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/wordfmt
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/wordfmt/serve.go -o ../internal/server/endpoints --outputTypes json --parseDependency --parseInternal
