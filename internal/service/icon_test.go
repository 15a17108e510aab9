package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIcon(t *testing.T) {
	assert.Equal(t, "http://a.com/x.png", NormalizeIcon("http://a.com/x.png", testBaseURL))
	assert.Equal(t, "https://a.com/x.png", NormalizeIcon("https://a.com/x.png", testBaseURL))
	assert.Equal(t, testBaseURL+"/x.png", NormalizeIcon("x.png", testBaseURL))
	assert.Equal(t, testBaseURL+"/x.png", NormalizeIcon("x.png", testBaseURL+"/"))
	assert.Equal(t, "", NormalizeIcon("", testBaseURL))
}

func TestStandardizeIcon(t *testing.T) {
	assert.Equal(t, "x.png", StandardizeIcon(testBaseURL+"/x.png", testBaseURL))
	assert.Equal(t, "https://a.com/x.png", StandardizeIcon("https://a.com/x.png", testBaseURL))
	assert.Equal(t, "x.png", StandardizeIcon(" x.png ", ""))
	assert.Equal(t, "", StandardizeIcon("", testBaseURL))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Tools", sanitizeText("<b>Tools</b>"))
	assert.Equal(t, "A & B", sanitizeText("A & B"))
	assert.Equal(t, "", sanitizeText("<script>alert(1)</script>"))
}
