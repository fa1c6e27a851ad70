package stacktemplate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossable/outpost/pkg/stacktemplate"
)

func TestDetectArchitecture(t *testing.T) {
	arm := []string{"t4g.nano", "a1.medium", "m6g.large", "m7g.xlarge", "c6g.medium", "c7g.large", "r6g.large", "r7g.large", "g5g.xlarge"}
	for _, it := range arm {
		assert.Equal(t, stacktemplate.ArchARM64, stacktemplate.DetectArchitecture(it), it)
	}

	x86 := []string{"t3.micro", "m5.large", "c5.xlarge", "t2.nano"}
	for _, it := range x86 {
		assert.Equal(t, stacktemplate.ArchX8664, stacktemplate.DetectArchitecture(it), it)
	}
}
