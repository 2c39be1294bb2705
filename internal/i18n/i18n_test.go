package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "AppTitle", "Assessor"},
		{"en", "ErrNotFound", "Not found"},
		{"ru", "AppTitle", "Оценщик"},
		{"ru", "ErrAnalysisInProgress", "Анализ этого результата уже выполняется"},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := T(ctx, tt.id); got != tt.want {
			t.Errorf("T(%s, %s) = %q, want %q", tt.lang, tt.id, got, tt.want)
		}
	}
}

func TestPluralTranslation(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{"en", 1, "1 question is unanswered"},
		{"en", 3, "3 questions are unanswered"},
		{"ru", 1, "1 вопрос без ответа"},
		{"ru", 3, "3 вопроса без ответа"},
		{"ru", 5, "5 вопросов без ответа"},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := Tp(ctx, "ErrIncompleteAnswers", tt.count); got != tt.want {
			t.Errorf("Tp(%s, %d) = %q, want %q", tt.lang, tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	got := Td(ctx, "ErrQuestionNotFound", map[string]any{"QuestionID": "q-7"})
	if got != "Question q-7 does not exist" {
		t.Errorf("Td(ErrQuestionNotFound) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLabel(t *testing.T) {
	en := initLang(t, "en")
	ru := WithLocalizer(context.Background(), NewLocalizer("ru"))
	tests := []struct {
		ctx    context.Context
		prefix string
		value  string
		want   string
	}{
		{en, "Level", "Very Good", "Very Good"},
		{en, "Level", "Needs Improvement", "Needs Improvement"},
		{ru, "Level", "Excellent", "Отлично"},
		{en, "Status", "submitted", "Pending"},
		{ru, "Status", "graded", "Проверено"},
		{en, "Level", "Legendary", "Legendary"},
	}
	for _, tt := range tests {
		if got := Label(tt.ctx, tt.prefix, tt.value); got != tt.want {
			t.Errorf("Label(%s, %q) = %q, want %q", tt.prefix, tt.value, got, tt.want)
		}
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")
	got := Languages()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "en" || got[1] != "ru" {
		t.Errorf("Languages() = %v, want [en ru]", got)
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "AppTitle")
	}))

	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{"default", "/", "", "Assessor"},
		{"header", "/", "ru-RU,ru;q=0.9,en;q=0.8", "Оценщик"},
		{"query wins", "/?lang=en", "ru", "Assessor"},
		{"unsupported", "/", "fr", "Assessor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
