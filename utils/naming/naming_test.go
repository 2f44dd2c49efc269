package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "cat", "cat"},
		{"spaces", "Narendra Modi", "Narendra_Modi"},
		{"safe punctuation", "a.b-c_d", "a.b-c_d"},
		{"slashes", "../etc/passwd", ".._etc_passwd"},
		{"diacritics folded", "Café crème", "Cafe_creme"},
		{"cjk", "猫", "_"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("x", 500))
	assert.Len(t, got, MaxNameLength)
}

func TestTopicDir(t *testing.T) {
	assert.Equal(t, "golden_retriever", TopicDir("Golden Retriever"))
	assert.Equal(t, "dog", TopicDir("DOG"))
	// 组合附加符号被去掉而不是替换成下划线
	assert.Equal(t, "creme_brulee", TopicDir("Crème Brûlée"))
	assert.Equal(t, "stra_e", TopicDir("Straße"))
}

func TestImageFilename(t *testing.T) {
	assert.Equal(t, "Golden_Retriever_3.jpg", ImageFilename("Golden Retriever", 3, ".jpg"))
	assert.Equal(t, "cat_11.png", ImageFilename("cat", 11, ".png"))
	assert.Equal(t, "cafe_1.jpg", ImageFilename("café", 1, ".jpg"))
}
