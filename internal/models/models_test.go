package models

import (
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				ID:        "test-session",
				UserID:    1,
				ExpiresAt: tt.expiresAt,
				CreatedAt: time.Now().Add(-1 * time.Hour),
			}
			result := session.IsExpired()
			if result != tt.want {
				t.Errorf("Session.IsExpired() = %v, want %v", result, tt.want)
			}
		})
	}
}

func TestMergeSettings(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Settings
		wantErr bool
	}{
		{
			name: "empty uses defaults",
			raw:  "",
			want: Settings{SoundEnabled: true, PrimaryColor: ColorBlue},
		},
		{
			name: "partial keeps default color",
			raw:  `{"soundEnabled": false}`,
			want: Settings{SoundEnabled: false, PrimaryColor: ColorBlue},
		},
		{
			name: "full override",
			raw:  `{"soundEnabled": false, "primaryColor": "purple"}`,
			want: Settings{SoundEnabled: false, PrimaryColor: ColorPurple},
		},
		{
			name: "unknown fields ignored",
			raw:  `{"primaryColor": "orange", "fontSize": 14}`,
			want: Settings{SoundEnabled: true, PrimaryColor: ColorOrange},
		},
		{
			name: "unknown color falls back",
			raw:  `{"primaryColor": "magenta"}`,
			want: Settings{SoundEnabled: true, PrimaryColor: ColorBlue},
		},
		{
			name:    "malformed returns defaults with error",
			raw:     `{"soundEnabled":`,
			want:    Settings{SoundEnabled: true, PrimaryColor: ColorBlue},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeSettings([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("MergeSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MergeSettings() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestColorHex(t *testing.T) {
	if got := ColorGreen.Hex(); got != "#10b981" {
		t.Errorf("ColorGreen.Hex() = %q", got)
	}
	if got := Color("nope").Hex(); got != "#3b82f6" {
		t.Errorf("unknown color should fall back to blue, got %q", got)
	}
}

func TestProgressMap(t *testing.T) {
	ch := &Chapter{ID: "c1", Questions: make([]Question, 4)}

	var empty ProgressMap
	if empty.Index("c1") != 0 {
		t.Error("nil map should report index 0")
	}
	if empty.Completed(ch) {
		t.Error("nil map should not mark chapter complete")
	}

	p := ProgressMap{"c1": 2}
	if got := p.Percent(ch); got != 50 {
		t.Errorf("Percent() = %d, want 50", got)
	}

	clone := p.Clone()
	clone["c1"] = 4
	if p["c1"] != 2 {
		t.Error("Clone() shares storage with the original")
	}
	if !clone.Completed(ch) {
		t.Error("index equal to question count should be complete")
	}

	zero := &Chapter{ID: "z"}
	if !p.Completed(zero) {
		t.Error("chapter without questions is always complete")
	}

	negative := ProgressMap{"c1": -3}
	if got := negative.Index("c1"); got != 0 {
		t.Errorf("Index() with negative stored value = %d, want 0", got)
	}
	if got := negative.Percent(ch); got != 0 {
		t.Errorf("Percent() with negative stored value = %d, want 0", got)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{4500, "45.00"},
		{999, "9.99"},
		{5, "0.05"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.cents); got != tt.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestUserDisplayName(t *testing.T) {
	u := &User{ID: 7, Email: "sam@example.com"}
	if got := u.DisplayName(); got != "sam" {
		t.Errorf("DisplayName() = %q, want sam", got)
	}
	if got := u.LibraryOwner(); got != "user:7" {
		t.Errorf("LibraryOwner() = %q", got)
	}
}
