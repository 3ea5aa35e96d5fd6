// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choria-io/fetch-resources/extractor"
	"github.com/choria-io/fetch-resources/fetcher"
	iu "github.com/choria-io/fetch-resources/internal/util"
	"github.com/choria-io/fetch-resources/internal/logging"
	"github.com/choria-io/fetch-resources/model"
)

var _ = Describe("Fetching from a server", func() {
	var (
		server *httptest.Server
		root   string
		ctx    context.Context
	)

	BeforeEach(func() {
		root = filepath.Join(GinkgoT().TempDir(), "resources")
		ctx = context.Background()

		mux := http.NewServeMux()
		mux.Handle("/public/", http.StripPrefix("/public/", http.FileServer(http.Dir("../extractor/testdata"))))
		mux.HandleFunc("/private/", func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "bob" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.StripPrefix("/private/", http.FileServer(http.Dir("../extractor/testdata"))).ServeHTTP(w, r)
		})
		mux.HandleFunc("/xdb.json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"singles":{}}`))
		})

		server = httptest.NewServer(mux)
	})

	AfterEach(func() {
		server.Close()
	})

	newOrchestrator := func(creds *model.Credentials) *Orchestrator {
		log := logging.NewDiscardLogger()

		f, err := fetcher.New(root, log)
		Expect(err).ToNot(HaveOccurred())

		return New(f, extractor.New(log), creds, log, log)
	}

	resource := func(name string, path string) model.ResourceDescriptor {
		return model.ResourceDescriptor{
			Name:    name,
			URL:     server.URL + path,
			Archive: filepath.Base(path),
			Target:  root,
		}
	}

	standard := func() []model.ResourceDescriptor {
		return []model.ResourceDescriptor{
			resource("metadata", "/public/metadata.tar.bz2"),
			resource("pdb_aligned", "/public/pdb_aligned.tar.bz2"),
			resource("pdb_prepped", "/public/pdb_prepped.tar.bz2"),
		}
	}

	It("Should fetch and extract all resources and remove the archives", func() {
		summary := newOrchestrator(nil).Run(ctx, standard())

		Expect(summary.AllSucceeded).To(BeTrue())
		Expect(summary.Results).To(HaveLen(3))

		Expect(iu.FileExists(filepath.Join(root, "metadata", "modules.json"))).To(BeTrue())
		Expect(iu.FileExists(filepath.Join(root, "metadata", "hubs.json"))).To(BeTrue())
		Expect(iu.FileExists(filepath.Join(root, "pdb_aligned", "singles", "D4.pdb"))).To(BeTrue())
		Expect(iu.FileExists(filepath.Join(root, "pdb_prepped", "D14.pdb"))).To(BeTrue())

		for _, archive := range []string{"metadata.tar.bz2", "pdb_aligned.tar.bz2", "pdb_prepped.tar.bz2"} {
			Expect(iu.FileExists(filepath.Join(root, archive))).To(BeFalse())
		}

		entries, err := os.ReadDir(root)
		Expect(err).ToNot(HaveOccurred())
		for _, entry := range entries {
			Expect(entry.IsDir()).To(BeTrue(), "unexpected file %s left in the root", entry.Name())
		}
	})

	It("Should be safe to run again over a populated root", func() {
		Expect(newOrchestrator(nil).Run(ctx, standard()).AllSucceeded).To(BeTrue())

		modules := filepath.Join(root, "metadata", "modules.json")
		Expect(os.WriteFile(modules, []byte("modified"), 0644)).To(Succeed())

		summary := newOrchestrator(nil).Run(ctx, standard())
		Expect(summary.AllSucceeded).To(BeTrue())

		body, err := os.ReadFile(modules)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("{\"modules\":[\"D4\",\"D14\"]}\n"))
	})

	It("Should report unreachable resources as network errors", func() {
		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		descriptors := standard()
		descriptors[1].URL = deadURL + "/pdb_aligned.tar.bz2"

		summary := newOrchestrator(nil).Run(ctx, descriptors)

		Expect(summary.AllSucceeded).To(BeFalse())
		Expect(summary.Results).To(HaveLen(3))
		Expect(summary.Results[1].Success).To(BeFalse())
		Expect(summary.Results[1].Kind).To(Equal(model.ErrorKindNetwork))
		Expect(summary.Results[0].Success).To(BeTrue())
		Expect(summary.Results[2].Success).To(BeTrue())
	})

	It("Should report wrong credentials as auth errors and carry on", func() {
		private := resource("pdb_aligned", "/private/pdb_aligned.tar.bz2")
		private.RequiresAuth = true

		descriptors := []model.ResourceDescriptor{
			private,
			resource("metadata", "/public/metadata.tar.bz2"),
		}

		summary := newOrchestrator(&model.Credentials{Username: "bob", Password: "wrong"}).Run(ctx, descriptors)

		Expect(summary.AllSucceeded).To(BeFalse())
		Expect(summary.Results[0].Kind).To(Equal(model.ErrorKindAuth))
		Expect(summary.Results[1].Success).To(BeTrue())
		Expect(iu.FileExists(filepath.Join(root, "metadata", "modules.json"))).To(BeTrue())
		Expect(iu.FileExists(filepath.Join(root, "pdb_aligned"))).To(BeFalse())
	})

	It("Should fetch authenticated resources with the right credentials", func() {
		private := resource("pdb_aligned", "/private/pdb_aligned.tar.bz2")
		private.RequiresAuth = true

		summary := newOrchestrator(&model.Credentials{Username: "bob", Password: "secret"}).Run(ctx, []model.ResourceDescriptor{private})

		Expect(summary.AllSucceeded).To(BeTrue())
		Expect(iu.FileExists(filepath.Join(root, "pdb_aligned", "run.sh"))).To(BeTrue())
	})

	It("Should place file resources", func() {
		index := resource("index", "/xdb.json")
		index.Kind = model.KindFile

		summary := newOrchestrator(nil).Run(ctx, []model.ResourceDescriptor{index})

		Expect(summary.AllSucceeded).To(BeTrue())
		body, err := os.ReadFile(filepath.Join(root, "xdb.json"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal(`{"singles":{}}`))
	})

	It("Should remove archives that fail to extract", func() {
		summary := newOrchestrator(nil).Run(ctx, []model.ResourceDescriptor{resource("slip", "/public/slip.tar.bz2")})

		Expect(summary.AllSucceeded).To(BeFalse())
		Expect(summary.Results[0].Kind).To(Equal(model.ErrorKindCorruptArchive))
		Expect(iu.FileExists(filepath.Join(root, "slip.tar.bz2"))).To(BeFalse())
	})
})
