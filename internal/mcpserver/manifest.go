package mcpserver

import (
	"encoding/json"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	serverName     = "io.github.gaps-closure/vscle"
	imageName      = "ghcr.io/gaps-closure/vscle"
)

// Manifest is the registry description (server.json) of `vscle mcp`.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository contains source repository information.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package is one way to launch the server.
type Package struct {
	RegistryType         string                `json:"registryType"`
	Identifier           string                `json:"identifier"`
	Version              string                `json:"version,omitempty"`
	PackageArguments     []Argument            `json:"packageArguments,omitempty"`
	EnvironmentVariables []EnvironmentVariable `json:"environmentVariables,omitempty"`
	Transport            Transport             `json:"transport"`
}

// Argument is a command-line argument passed to the package.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// EnvironmentVariable is a setting the client may provide at launch.
type EnvironmentVariable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsRequired  bool   `json:"isRequired,omitempty"`
}

// Transport describes the communication method.
type Transport struct {
	Type string `json:"type"`
}

// serveArgs launches the stdio server. The settings come from
// VSCLE_CONFIG or the standard config locations.
var serveArgs = []Argument{{Type: "positional", Value: "mcp"}}

var configEnv = EnvironmentVariable{
	Name:        "VSCLE_CONFIG",
	Description: "Path to the vscle settings file naming source_dirs and the analyzer command",
}

// GenerateManifest renders server.json for version, "0.0.0" when empty.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	manifest := Manifest{
		Schema:      manifestSchema,
		Name:        serverName,
		Title:       "CLE labels",
		Description: "CLE label navigation, enclave conflict analysis and topology highlighting for C/C++",
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/gaps-closure/vscle",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType:         "oci",
				Identifier:           imageName + ":" + version,
				PackageArguments:     serveArgs,
				EnvironmentVariables: []EnvironmentVariable{configEnv},
				Transport:            Transport{Type: "stdio"},
			},
		},
	}

	return json.MarshalIndent(manifest, "", "  ")
}
