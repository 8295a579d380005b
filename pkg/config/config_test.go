package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "none", cfg.Timetable.SubjectFallback)
	assert.Equal(t, "first_fit", cfg.Timetable.TeacherSelection)
	assert.Equal(t, 10*time.Minute, cfg.Timetable.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Timetable.GenerateTimeout)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("TIMETABLE_SUBJECT_FALLBACK", " Next_Priority ")
	v.Set("TIMETABLE_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg := fromViper(v)

	assert.Equal(t, "next_priority", cfg.Timetable.SubjectFallback)
	assert.Equal(t, 10*time.Minute, cfg.Timetable.CacheTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestSplitAndTrimEmpty(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
}
