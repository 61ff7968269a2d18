package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	cases := map[string]struct {
		cfg  Config
		want error
	}{
		"missing backend":         {Config{DataDir: "/srv/wt"}, ErrBackendEmpty},
		"unsupported backend":     {Config{Backend: "postgres", DataDir: "/srv/wt"}, ErrBackendUnknown},
		"negative max results":    {Config{Backend: BackendSQLite, Search: SearchConfig{MaxResults: -1}}, ErrLimitInvalid},
		"negative field limit":    {Config{Backend: BackendSQLite, Search: SearchConfig{FieldLimit: -5}}, ErrLimitInvalid},
		"sqlite":                  {Config{Backend: BackendSQLite, DataDir: "/srv/wt"}, nil},
		"sqlite without data dir": {Config{Backend: BackendSQLite}, nil},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{
		Backend: BackendSQLite,
		Search:  SearchConfig{MaxResults: 10},
		Cache:   CacheConfig{PeopleTTL: time.Second},
	}.WithDefaults()

	assert.Equal(t, 10, c.Search.MaxResults, "explicit value kept")
	assert.Equal(t, time.Second, c.Cache.PeopleTTL, "explicit value kept")
	assert.Equal(t, DefaultFieldLimit, c.Search.FieldLimit)
	assert.Equal(t, DefaultLabelsTTL, c.Cache.LabelsTTL)
	assert.Equal(t, DefaultWorkItemsTTL, c.Cache.WorkItemsTTL)
	assert.Equal(t, DefaultActivityTTL, c.Cache.ActivityTTL)
}
