package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/server/endpoints"
	"gopkg.in/yaml.v3"
)

// Manifest is the YAML document a service ships to declare its endpoints.
type Manifest struct {
	Service   string               `yaml:"service"`
	Endpoints []endpoints.SyncItem `yaml:"endpoints"`
}

// LoadManifest parses a manifest and rejects unknown keys.
func LoadManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if strings.TrimSpace(m.Service) == "" {
		return nil, errors.New("manifest: service is required")
	}
	return &m, nil
}

type syncBody struct {
	ServiceName string               `json:"serviceName"`
	Endpoints   []endpoints.SyncItem `json:"endpoints"`
}

func (a *App) sync(ctx context.Context, args []string) error {
	fs := a.flagSet("sync")
	file := fs.StringP("file", "f", "", "manifest file")
	hub := fs.String("hub", "http://localhost:8080", "hub base URL")
	token := fs.String("token", os.Getenv("AUTHHUB_SERVICE_TOKEN"), "service token")
	bearer := fs.String("bearer", "", "admin access token, used instead of --token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("--file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	m, err := LoadManifest(f)
	f.Close()
	if err != nil {
		return err
	}

	body, err := json.Marshal(syncBody{ServiceName: m.Service, Endpoints: m.Endpoints})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(*hub, "/")+"/permissions/sync", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case *bearer != "":
		req.Header.Set("Authorization", common.BearerPrefix+*bearer)
	case *token != "":
		req.Header.Set(common.ServiceTokenHeaderName, *token)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("hub returned %s: %s", resp.Status, e.Message)
	}

	var res endpoints.SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Fprintf(a.Stdout, "service %s: %d requested, %d permissions created, %d endpoints created, %d skipped, %d role grants\n",
		m.Service, res.TotalRequested, res.PermissionsCreated, res.EndpointsCreated, res.EndpointsSkipped, res.RolePermissionsMapped)
	return nil
}
