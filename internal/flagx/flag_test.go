package flagx

import (
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.json", "-a", "localhost"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "long flag with equals",
			args:         []string{"--config=alt.json", "-a", "localhost"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{},
		},
		{
			name:         "flag without value at end is kept as-is",
			args:         []string{"-c"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c"},
		},
		{
			name:         "flag followed by another flag (no value)",
			args:         []string{"-c", "-notvalue"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c"},
		},
		{
			name:         "multiple allowed flags kept",
			args:         []string{"-a", "localhost:8080", "-c", "conf.json", "--other", "x"},
			allowedFlags: []string{"-c", "-a"},
			want:         []string{"-a", "localhost:8080", "-c", "conf.json"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{},
		},
		{
			name:         "repeated allowed flag is preserved in order",
			args:         []string{"-c", "one.json", "-c", "two.json"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "one.json", "-c", "two.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowedFlags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestStripArgs(t *testing.T) {
	got := StripArgs([]string{"-c", "a.json", "--http-addr", ":1", "--config=b.json", "-config", "c.json", "-d", "dsn"}, ConfigFlags)
	assert.Equal(t, []string{"--http-addr", ":1", "-d", "dsn"}, got)
	assert.Empty(t, StripArgs(nil, ConfigFlags))
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/path/short.json", ConfigPath([]string{"-c", "/path/short.json"}))
	assert.Equal(t, "/path/long.json", ConfigPath([]string{"-config", "/path/long.json"}))
	assert.Equal(t, "/path/dd.json", ConfigPath([]string{"--config=/path/dd.json", "--http-addr", ":1"}))
	assert.Empty(t, ConfigPath([]string{"-x", "1", "-y", "2"}))
	assert.Equal(t, "/path/2.json", ConfigPath([]string{"-c", "/path/1.json", "-config", "/path/2.json"}))
}

func Test_jsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin", "-c", "/path/short.json"}
	assert.Equal(t, "/path/short.json", JsonConfigFlags())
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "AUTHHUB_REDIS_ADDR", EnvName("AUTHHUB", "redis-addr"))
	assert.Equal(t, "ISSUER", EnvName("", "issuer"))
}

func TestApplyEnv_CommandLineWins(t *testing.T) {
	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	addr := fs.String("http-addr", ":8080", "")
	dsn := fs.String("database-dsn", "default", "")
	ttl := fs.Duration("access-ttl", time.Minute, "")
	require.NoError(t, fs.Parse([]string{"--http-addr", ":9999"}))

	env := map[string]string{
		"AUTHHUB_HTTP_ADDR":    ":1111",
		"AUTHHUB_DATABASE_DSN": "postgres://env",
		"AUTHHUB_ACCESS_TTL":   "5m",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	require.NoError(t, ApplyEnv(fs, "AUTHHUB", lookup))
	assert.Equal(t, ":9999", *addr)
	assert.Equal(t, "postgres://env", *dsn)
	assert.Equal(t, 5*time.Minute, *ttl)
}

func TestApplyEnv_BadValue(t *testing.T) {
	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	fs.Duration("access-ttl", time.Minute, "")
	require.NoError(t, fs.Parse(nil))

	err := ApplyEnv(fs, "AUTHHUB", func(string) (string, bool) { return "soon", true })
	require.Error(t, err)
}
