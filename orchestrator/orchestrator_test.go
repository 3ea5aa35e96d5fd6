// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/fetch-resources/model"
	"github.com/choria-io/fetch-resources/model/modelmocks"
)

func TestOrchestrator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Orchestrator")
}

var _ = Describe("Orchestrator", func() {
	var (
		mockctl   *gomock.Controller
		logger    *modelmocks.MockLogger
		out       *modelmocks.MockLogger
		fetcher   *modelmocks.MockFetcher
		extractor *modelmocks.MockExtractor
		creds     *model.Credentials
		orch      *Orchestrator
		ctx       context.Context
	)

	descriptor := func(name string) model.ResourceDescriptor {
		return model.ResourceDescriptor{
			Name:    name,
			URL:     fmt.Sprintf("https://example.net/%s.tar.bz2", name),
			Archive: name + ".tar.bz2",
			Target:  "/srv/resources/" + name,
		}
	}

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		logger = modelmocks.NewQuietLogger(mockctl)
		out = modelmocks.NewMockLogger(mockctl)
		fetcher = modelmocks.NewMockFetcher(mockctl)
		extractor = modelmocks.NewMockExtractor(mockctl)
		creds = &model.Credentials{Username: "bob", Password: "secret"}
		ctx = context.Background()

		orch = New(fetcher, extractor, creds, logger, out)
	})

	AfterEach(func() {
		mockctl.Finish()
	})

	Describe("Run", func() {
		It("Should fetch and extract every resource in order", func() {
			descriptors := []model.ResourceDescriptor{descriptor("metadata"), descriptor("pdb_aligned"), descriptor("pdb_prepped")}

			var calls []any
			for _, d := range descriptors {
				calls = append(calls,
					fetcher.EXPECT().Fetch(ctx, gomock.Any(), creds).DoAndReturn(func(_ context.Context, got *model.ResourceDescriptor, _ *model.Credentials) (string, error) {
						Expect(got.Name).To(Equal(d.Name))
						return "/srv/resources/" + d.Archive, nil
					}),
					extractor.EXPECT().Extract(ctx, "/srv/resources/"+d.Archive, d.Target).Return(nil),
				)
			}
			gomock.InOrder(calls...)
			out.EXPECT().Info("All 3 resources fetched successfully").Times(1)

			summary := orch.Run(ctx, descriptors)

			Expect(summary.AllSucceeded).To(BeTrue())
			Expect(summary.RunID).ToNot(BeEmpty())
			Expect(summary.Results).To(HaveLen(3))
			for i, res := range summary.Results {
				Expect(res.Descriptor.Name).To(Equal(descriptors[i].Name))
				Expect(res.Success).To(BeTrue())
				Expect(res.Error).To(BeEmpty())
				Expect(res.Kind).To(Equal(model.ErrorKindNone))
			}
		})

		It("Should place file resources rather than extracting them", func() {
			d := descriptor("index")
			d.Kind = model.KindFile
			d.Archive = "xdb.json"

			fetcher.EXPECT().Fetch(ctx, gomock.Any(), creds).Return("/srv/resources/xdb.json", nil)
			extractor.EXPECT().Place(ctx, "/srv/resources/xdb.json", d.Target, "xdb.json").Return(nil)
			out.EXPECT().Info(gomock.Any()).Times(1)

			summary := orch.Run(ctx, []model.ResourceDescriptor{d})
			Expect(summary.AllSucceeded).To(BeTrue())
		})

		It("Should continue past failures and record one result per resource", func() {
			descriptors := []model.ResourceDescriptor{descriptor("metadata"), descriptor("pdb_aligned"), descriptor("pdb_prepped")}

			gomock.InOrder(
				fetcher.EXPECT().Fetch(ctx, gomock.Any(), creds).Return("", fmt.Errorf("%w: dial tcp: connection refused", model.ErrNetwork)),
				fetcher.EXPECT().Fetch(ctx, gomock.Any(), creds).Return("/srv/resources/pdb_aligned.tar.bz2", nil),
				extractor.EXPECT().Extract(ctx, "/srv/resources/pdb_aligned.tar.bz2", "/srv/resources/pdb_aligned").Return(fmt.Errorf("%w: bad magic", model.ErrCorruptArchive)),
				fetcher.EXPECT().Fetch(ctx, gomock.Any(), creds).Return("/srv/resources/pdb_prepped.tar.bz2", nil),
				extractor.EXPECT().Extract(ctx, "/srv/resources/pdb_prepped.tar.bz2", "/srv/resources/pdb_prepped").Return(nil),
			)
			out.EXPECT().Error("2 of 3 resources failed").Times(1)

			summary := orch.Run(ctx, descriptors)

			Expect(summary.AllSucceeded).To(BeFalse())
			Expect(summary.Failed()).To(Equal(2))
			Expect(summary.Results).To(HaveLen(3))

			Expect(summary.Results[0].Success).To(BeFalse())
			Expect(summary.Results[0].Kind).To(Equal(model.ErrorKindNetwork))
			Expect(summary.Results[0].Err).To(MatchError(model.ErrNetwork))
			Expect(summary.Results[0].Error).To(ContainSubstring("connection refused"))

			Expect(summary.Results[1].Success).To(BeFalse())
			Expect(summary.Results[1].Kind).To(Equal(model.ErrorKindCorruptArchive))

			Expect(summary.Results[2].Success).To(BeTrue())
		})

		It("Should record invalid resources without fetching them", func() {
			bad := descriptor("broken")
			bad.URL = "ftp://example.net/broken.tar.bz2"
			good := descriptor("metadata")

			fetcher.EXPECT().Fetch(ctx, gomock.Any(), creds).Return("/srv/resources/metadata.tar.bz2", nil).Times(1)
			extractor.EXPECT().Extract(ctx, gomock.Any(), gomock.Any()).Return(nil).Times(1)
			out.EXPECT().Error("1 of 2 resources failed").Times(1)

			summary := orch.Run(ctx, []model.ResourceDescriptor{bad, good})

			Expect(summary.Results).To(HaveLen(2))
			Expect(summary.Results[0].Kind).To(Equal(model.ErrorKindResourceInvalid))
			Expect(summary.Results[1].Success).To(BeTrue())
		})

		It("Should produce a successful empty summary for no resources", func() {
			out.EXPECT().Info("All 0 resources fetched successfully").Times(1)

			summary := orch.Run(ctx, nil)
			Expect(summary.AllSucceeded).To(BeTrue())
			Expect(summary.Results).To(BeEmpty())
		})

		It("Should pass nil credentials through", func() {
			orch = New(fetcher, extractor, nil, logger, out)

			fetcher.EXPECT().Fetch(ctx, gomock.Any(), gomock.Nil()).Return("", errors.New("boom"))
			out.EXPECT().Error(gomock.Any()).Times(1)

			summary := orch.Run(ctx, []model.ResourceDescriptor{descriptor("metadata")})
			Expect(summary.Results[0].Kind).To(Equal(model.ErrorKindUnknown))
		})
	})
})
