package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDependency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		want       Dependency
		wantErrSub string
	}{
		{
			name:   "plain host port",
			target: "db:5432",
			want:   Dependency{Name: "db", Scheme: "tcp", Host: "db", Port: 5432, URL: "db:5432"},
		},
		{
			name:   "plain host port hyphenated",
			target: "redis-cache:6379",
			want:   Dependency{Name: "redis-cache", Scheme: "tcp", Host: "redis-cache", Port: 6379, URL: "redis-cache:6379"},
		},
		{
			name:   "redis url with db path",
			target: "redis://redis-store:6379/0",
			want:   Dependency{Name: "redis-store", Scheme: "redis", Host: "redis-store", Port: 6379, URL: "redis://redis-store:6379/0"},
		},
		{
			name:   "postgres url defaults port",
			target: "postgres://user:pass@db/tecken",
			want:   Dependency{Name: "db", Scheme: "postgres", Host: "db", Port: 5432, URL: "postgres://user:pass@db/tecken"},
		},
		{
			name:   "postgresql alias normalised",
			target: "postgresql://db:5433/tecken",
			want:   Dependency{Name: "db", Scheme: "postgres", Host: "db", Port: 5433, URL: "postgresql://db:5433/tecken"},
		},
		{
			name:   "nats url defaults port",
			target: "nats://broker",
			want:   Dependency{Name: "broker", Scheme: "nats", Host: "broker", Port: 4222, URL: "nats://broker"},
		},
		{
			name:   "http url with explicit port",
			target: "http://localstack-s3:4572",
			want:   Dependency{Name: "localstack-s3", Scheme: "http", Host: "localstack-s3", Port: 4572, URL: "http://localstack-s3:4572"},
		},
		{
			name:   "https url defaults port",
			target: "https://storage.example.com",
			want:   Dependency{Name: "storage.example.com", Scheme: "https", Host: "storage.example.com", Port: 443, URL: "https://storage.example.com"},
		},
		{
			name:   "explicit tcp scheme",
			target: "tcp://broker:4222",
			want:   Dependency{Name: "broker", Scheme: "tcp", Host: "broker", Port: 4222, URL: "tcp://broker:4222"},
		},
		{
			name:   "ipv6 host port",
			target: "[::1]:5432",
			want:   Dependency{Name: "::1", Scheme: "tcp", Host: "::1", Port: 5432, URL: "[::1]:5432"},
		},
		{
			name:       "tcp scheme without port",
			target:     "tcp://broker",
			wantErrSub: "port required",
		},
		{
			name:       "missing port",
			target:     "db",
			wantErrSub: "db",
		},
		{
			name:       "non-numeric port",
			target:     "db:fivethousand",
			wantErrSub: "invalid port",
		},
		{
			name:       "port out of range",
			target:     "db:70000",
			wantErrSub: "invalid port",
		},
		{
			name:       "unsupported scheme",
			target:     "gopher://db:5432",
			wantErrSub: "unsupported scheme",
		},
		{
			name:       "scheme without host",
			target:     "redis://",
			wantErrSub: "missing host",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dep, err := ParseDependency(tc.target)
			if tc.wantErrSub != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErrSub)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, dep)
		})
	}
}

func TestDependency_Target(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "db:5432", Dependency{Host: "db", Port: 5432}.Target())
	assert.Equal(t, "[::1]:6379", Dependency{Host: "::1", Port: 6379}.Target())
}

func TestParseDependencies(t *testing.T) {
	t.Parallel()

	t.Run("all valid", func(t *testing.T) {
		t.Parallel()

		deps, err := ParseDependencies([]string{"db:5432", "redis-cache:6379"})
		require.NoError(t, err)
		require.Len(t, deps, 2)
		assert.Equal(t, "db", deps[0].Name)
		assert.Equal(t, "redis-cache", deps[1].Name)
	})

	t.Run("first bad target fails the lot", func(t *testing.T) {
		t.Parallel()

		_, err := ParseDependencies([]string{"db:5432", "nope"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
	})
}
