package mic

import (
	"testing"
	"time"
)

func TestBuildOptions(t *testing.T) {
	t.Parallel()

	o := buildOptions(nil)
	if o.sampleRate != DefaultSampleRate {
		t.Errorf("sampleRate = %d, want %d", o.sampleRate, DefaultSampleRate)
	}
	if o.maxDuration != 15*time.Second {
		t.Errorf("maxDuration = %v, want 15s", o.maxDuration)
	}

	o = buildOptions([]Option{
		WithSampleRate(48000),
		WithMaxDuration(5 * time.Second),
		WithTrailingSilence(time.Second),
		WithSilenceRMS(500),
	})
	if o.sampleRate != 48000 || o.maxDuration != 5*time.Second || o.trailingSilence != time.Second || o.silenceRMS != 500 {
		t.Errorf("options = %+v", o)
	}
}
