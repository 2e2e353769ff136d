package container_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestContainerE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Container End-to-End Suite")
}
