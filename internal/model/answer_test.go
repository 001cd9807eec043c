package model

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyForQuestion_StableForIdenticalText(t *testing.T) {
	assert.Equal(t, KeyForQuestion("什么是越位？"), KeyForQuestion("什么是越位？"))
}

func TestKeyForQuestion_RawTextIsNotNormalized(t *testing.T) {
	// 键基于原始字节，大小写和首尾空白的变体都是不同的记录
	base := KeyForQuestion("what is offside?")
	assert.NotEqual(t, base, KeyForQuestion("What is offside?"))
	assert.NotEqual(t, base, KeyForQuestion(" what is offside? "))
	assert.NotEqual(t, base, KeyForQuestion("what is offside?\n"))
}

func TestKeyForQuestion_Format(t *testing.T) {
	key := KeyForQuestion("任意文本")
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), key)
}
