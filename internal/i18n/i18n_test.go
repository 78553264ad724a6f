package i18n

import "testing"

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		key  string
		lang string
		want string
	}{
		{"english is the key itself", "📝 Create advertisement", "en", "📝 Create advertisement"},
		{"russian translation", "📝 Create advertisement", "ru", "📝 Создать объявление"},
		{"unknown key falls back", "no such key", "ru", "no such key"},
		{"unknown language falls back", "✅ Approve", "kz", "✅ Approve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Get(tt.key, tt.lang); got != tt.want {
				t.Fatalf("unexpected translation: got %q want %q", got, tt.want)
			}
		})
	}
}

func TestGetLanguagesList(t *testing.T) {
	languages := GetLanguagesList()
	if len(languages) == 0 || languages[0] != "en" {
		t.Fatalf("unexpected languages: %v", languages)
	}
}
