package prefabs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/milk9111/xmod/sound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedBankAndScene(t *testing.T) {
	bank, err := LoadBankSpec("sounds.yaml")
	require.NoError(t, err)
	theme, ok := bank.Event("theme")
	require.True(t, ok)
	assert.True(t, theme.Loop)
	assert.Equal(t, "sounds/theme.wav", theme.File)

	scene, err := LoadSceneSpec("prefabs/scene.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sounds.yaml", scene.Bank)
	require.NotEmpty(t, scene.Entities)

	src, err := LoadScript(scene.Script)
	require.NoError(t, err)
	assert.Contains(t, string(src), "play(")
}

func TestBankValidate(t *testing.T) {
	cases := []struct {
		name    string
		bank    BankSpec
		wantErr bool
	}{
		{"ok", BankSpec{Events: []EventSpec{{Name: "a", File: "a.wav"}}}, false},
		{"no_name", BankSpec{Events: []EventSpec{{File: "a.wav"}}}, true},
		{"no_file", BankSpec{Events: []EventSpec{{Name: "a"}}}, true},
		{"negative_gain", BankSpec{Events: []EventSpec{{Name: "a", File: "a.wav", Gain: -1}}}, true},
		{"duplicate", BankSpec{Events: []EventSpec{{Name: "a", File: "a.wav"}, {Name: "a", File: "b.wav"}}}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.bank.Validate()
			if c.wantErr {
				require.ErrorIs(t, err, ErrInvalidSpec)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSceneValidate(t *testing.T) {
	player := func(sound map[string]any) EntityBuildSpec {
		return EntityBuildSpec{Name: "p", Components: map[string]any{
			"sound_player": map[string]any{"play_on_start": true, "sound": sound},
		}}
	}
	cases := []struct {
		name    string
		scene   SceneSpec
		wantErr bool
	}{
		{"ok", SceneSpec{Entities: []EntityBuildSpec{player(map[string]any{"event": "a", "follow": "p"})}}, false},
		{"no_sound_is_allowed", SceneSpec{Entities: []EntityBuildSpec{{Name: "p", Components: map[string]any{"sound_player": map[string]any{}}}}}, false},
		{"missing_event", SceneSpec{Entities: []EntityBuildSpec{player(map[string]any{"volume": 1})}}, true},
		{"unknown_follow", SceneSpec{Entities: []EntityBuildSpec{player(map[string]any{"event": "a", "follow": "ghost"})}}, true},
		{"unnamed_entity", SceneSpec{Entities: []EntityBuildSpec{{}}}, true},
		{"duplicate_entity", SceneSpec{Entities: []EntityBuildSpec{{Name: "a"}, {Name: "a"}}}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.scene.Validate()
			if c.wantErr {
				require.ErrorIs(t, err, ErrInvalidSpec)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSoundPlayerChannelGroupDefault(t *testing.T) {
	empty := ""
	music := " music "
	assert.Equal(t, sound.DefaultChannelGroup, SoundPlayerComponentSpec{}.ChannelGroup())
	assert.Equal(t, "", SoundPlayerComponentSpec{ChannelGroupName: &empty}.ChannelGroup())
	assert.Equal(t, "music", SoundPlayerComponentSpec{ChannelGroupName: &music}.ChannelGroup())
}

func TestDiskOverridesEmbedded(t *testing.T) {
	dir := t.TempDir()
	Dir = dir
	t.Cleanup(func() { Dir = "prefabs" })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sounds.yaml"), []byte("name: disk\nevents:\n  - name: x\n    file: x.wav\n"), 0o644))
	bank, err := LoadBankSpec("sounds.yaml")
	require.NoError(t, err)
	assert.Equal(t, "disk", bank.Name)

	_, ok := ModTime("sounds.yaml")
	assert.True(t, ok)
	_, ok = ModTime("scene.yaml")
	assert.False(t, ok)
}

func TestCleanScriptPath(t *testing.T) {
	cases := map[string]string{
		"demo":                       "scripts/demo.tengo",
		"demo.tengo":                 "scripts/demo.tengo",
		"scripts/demo.tengo":         "scripts/demo.tengo",
		"prefabs/scripts/demo.tengo": "scripts/demo.tengo",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanScriptPath(in), in)
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcherWithDebounce(time.Millisecond, dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.yaml"), []byte("name: x\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ch := <-w.Events:
			require.NotEqual(t, "notes.txt", filepath.Base(ch.Path))
			if filepath.Base(ch.Path) == "bank.yaml" {
				assert.Equal(t, ChangeSpec, ch.Kind)
				return
			}
		case err := <-w.Errors:
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timed out waiting for change event")
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		kind ChangeKind
		ok   bool
	}{
		{"a.yaml", ChangeSpec, true},
		{"a.YML", ChangeSpec, true},
		{"demo.tengo", ChangeScript, true},
		{"theme.wav", ChangeClip, true},
		{"readme.md", 0, false},
	}
	for _, c := range cases {
		kind, ok := classify(c.path)
		assert.Equal(t, c.ok, ok, c.path)
		assert.Equal(t, c.kind, kind, c.path)
	}
}
