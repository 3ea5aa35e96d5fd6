// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package facts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/fetch-resources/model/modelmocks"
)

func TestFacts(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Internal/Facts")
}

var _ = Describe("Facts", func() {
	var (
		mockctl *gomock.Controller
		saved   []string
	)

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		saved = ConfigDirectories
	})

	AfterEach(func() {
		ConfigDirectories = saved
		mockctl.Finish()
	})

	Describe("StandardFacts", func() {
		It("Should gather host facts", func() {
			ConfigDirectories = nil

			f := StandardFacts(context.Background(), modelmocks.NewQuietLogger(mockctl))
			Expect(f).To(HaveKey("host"))
			Expect(f).To(HaveKey("cpu"))
			Expect(f).To(HaveKey("memory"))
		})

		It("Should merge facts files in order", func() {
			sys := GinkgoT().TempDir()
			user := GinkgoT().TempDir()
			ConfigDirectories = []string{sys, user}

			Expect(os.WriteFile(filepath.Join(sys, "facts.json"), []byte(`{"site":"lon","rack":1}`), 0600)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(user, "facts.yaml"), []byte("site: ams\n"), 0600)).To(Succeed())

			f := StandardFacts(context.Background(), modelmocks.NewQuietLogger(mockctl))
			Expect(f).To(HaveKeyWithValue("site", "ams"))
			Expect(f).To(HaveKey("rack"))
			Expect(f).To(HaveKey("host"))
		})

		It("Should deep merge facts files into gathered facts", func() {
			dir := GinkgoT().TempDir()
			ConfigDirectories = []string{dir}
			Expect(os.WriteFile(filepath.Join(dir, "facts.yaml"), []byte("host:\n  role: builder\n"), 0600)).To(Succeed())

			f := StandardFacts(context.Background(), modelmocks.NewQuietLogger(mockctl))
			Expect(f["host"]).To(HaveKeyWithValue("role", "builder"))
			Expect(f["host"]).To(HaveKey("info"))
		})

		It("Should log and skip invalid facts files", func() {
			dir := GinkgoT().TempDir()
			ConfigDirectories = []string{dir}
			file := filepath.Join(dir, "facts.json")
			Expect(os.WriteFile(file, []byte(`{`), 0600)).To(Succeed())

			log := modelmocks.NewMockLogger(mockctl)
			log.EXPECT().Debug("Reading facts", "file", file)
			log.EXPECT().Error("Failed to read facts file", "file", file, "error", gomock.Any())

			f := StandardFacts(context.Background(), log)
			Expect(f).To(HaveKey("host"))
		})
	})

	Describe("FreeSpace", func() {
		It("Should report space for existing and missing directories", func() {
			td := GinkgoT().TempDir()

			free, err := FreeSpace(context.Background(), td)
			Expect(err).NotTo(HaveOccurred())
			Expect(free).To(BeNumerically(">", 0))

			missing, err := FreeSpace(context.Background(), filepath.Join(td, "a", "b"))
			Expect(err).NotTo(HaveOccurred())
			Expect(missing).To(BeNumerically(">", 0))
		})
	})
})
