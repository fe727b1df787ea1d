package assets

import "testing"

func TestCleanAssetPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"sounds/theme.wav", "sounds/theme.wav"},
		{"assets/sounds/theme.wav", "sounds/theme.wav"},
		{"/home/dev/xmod/assets/sounds/hum.wav", "sounds/hum.wav"},
		{"/tmp/chime.wav", "chime.wav"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			if got := cleanAssetPath(c.in); got != c.want {
				t.Fatalf("cleanAssetPath(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestLoadAudioEmbedded(t *testing.T) {
	Dir = t.TempDir()
	t.Cleanup(func() { Dir = "assets" })

	for _, name := range []string{"sounds/theme.wav", "assets/sounds/chime.wav", "sounds/hum.wav"} {
		b, err := LoadAudio(name)
		if err != nil {
			t.Fatalf("LoadAudio(%q): %v", name, err)
		}
		if len(b) < 44 || string(b[:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
			t.Fatalf("LoadAudio(%q): not a wav file", name)
		}
	}

	if _, err := LoadAudio("sounds/missing.wav"); err == nil {
		t.Fatalf("expected error for missing clip")
	}
}
