package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

func ownedLineup() *model.Lineup {
	return &model.Lineup{
		ID:     "lineup-1",
		UserID: "owner-1",
		LineupFields: model.LineupFields{
			Title: "Смок", MapName: "Bind", AgentName: "Omen", Side: model.SideAttack,
			Images: model.Images{
				model.SlotStand: {URL: "https://src.example.com/stand.webp"},
				model.SlotAim:   {URL: "https://src.example.com/aim.webp", Description: "прицел"},
			},
		},
	}
}

func newLineupService(lineups *mockLineupRepo, quota *memQuotaRepo, fetcher ImageFetcher, migrator SlotMigrator) *LineupService {
	return NewLineupService(lineups, newMemPublicRepo(), &memDownloadLogs{}, newTestQuota(quota, 10, 2), migrator, fetcher, 2, testLogger())
}

func TestLineupService_Export(t *testing.T) {
	lineups := &mockLineupRepo{
		getByIDFn: func(context.Context, string) (*model.Lineup, error) { return ownedLineup(), nil },
	}
	quota := newMemQuotaRepo()
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, u string) (*provider.Fetched, error) {
			if strings.HasSuffix(u, "aim.webp") {
				return nil, errors.New("404")
			}
			return &provider.Fetched{Data: []byte("RIFF....WEBPVP8 "), ContentType: "image/webp"}, nil
		},
	}
	svc := newLineupService(lineups, quota, fetcher, &mockMigrator{})

	exp, err := svc.Export(context.Background(), "owner-1", "lineup-1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exp.FileName != "Bind_Omen_技能_Смок.zip" {
		t.Errorf("FileName = %q", exp.FileName)
	}
	if len(exp.Failed) != 1 || exp.Failed[0] != model.SlotAim {
		t.Errorf("Failed = %v", exp.Failed)
	}

	zr, err := zip.NewReader(bytes.NewReader(exp.Data), int64(len(exp.Data)))
	if err != nil {
		t.Fatalf("архив не читается: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["images/站位图.webp"] || len(names) != 2 {
		t.Errorf("файлы архива = %v", names)
	}
	if got := quota.counts["owner-1|download|2026-03-15"]; got != 1 {
		t.Errorf("квота скачиваний = %d, ожидается 1", got)
	}

	logs, err := svc.ListDownloadLogs(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListDownloadLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("записей журнала = %d, ожидается 1", len(logs))
	}
	if e := logs[0]; e.UserID != "owner-1" || e.LineupID != "lineup-1" || e.LineupTitle != "Смок" ||
		e.MapName != "Bind" || e.AgentName != "Omen" || e.DownloadCount != 1 {
		t.Errorf("запись журнала = %+v", e)
	}
}

func TestLineupService_ExportSurvivesDownloadLogFailure(t *testing.T) {
	lineups := &mockLineupRepo{
		getByIDFn: func(context.Context, string) (*model.Lineup, error) { return ownedLineup(), nil },
	}
	fetcher := &mockFetcher{
		fetchFn: func(context.Context, string) (*provider.Fetched, error) {
			return &provider.Fetched{Data: []byte("x")}, nil
		},
	}
	svc := newLineupService(lineups, newMemQuotaRepo(), fetcher, &mockMigrator{})
	svc.downloads.(*memDownloadLogs).createErr = errors.New("db down")

	if _, err := svc.Export(context.Background(), "owner-1", "lineup-1"); err != nil {
		t.Fatalf("Export: %v", err)
	}
}

func TestLineupService_ExportQuotaNotLogged(t *testing.T) {
	lineups := &mockLineupRepo{
		getByIDFn: func(context.Context, string) (*model.Lineup, error) { return ownedLineup(), nil },
	}
	quota := newMemQuotaRepo()
	quota.set("owner-1", model.QuotaDownload, testNow, 2)
	svc := newLineupService(lineups, quota, &mockFetcher{}, &mockMigrator{})

	_, _ = svc.Export(context.Background(), "owner-1", "lineup-1")
	if n := len(svc.downloads.(*memDownloadLogs).entries); n != 0 {
		t.Errorf("отказ по квоте записан в журнал: %d", n)
	}
}

func TestLineupService_ExportQuotaAndOwnership(t *testing.T) {
	lineups := &mockLineupRepo{
		getByIDFn: func(context.Context, string) (*model.Lineup, error) { return ownedLineup(), nil },
	}
	quota := newMemQuotaRepo()
	quota.set("owner-1", model.QuotaDownload, testNow, 2)
	fetched := 0
	fetcher := &mockFetcher{
		fetchFn: func(context.Context, string) (*provider.Fetched, error) {
			fetched++
			return &provider.Fetched{Data: []byte("x")}, nil
		},
	}
	svc := newLineupService(lineups, quota, fetcher, &mockMigrator{})

	if _, err := svc.Export(context.Background(), "owner-1", "lineup-1"); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("err = %v, ожидается ErrQuotaExceeded", err)
	}
	if fetched != 0 {
		t.Error("при отказе квоты изображения не скачиваются")
	}
	if _, err := svc.Export(context.Background(), "intruder", "lineup-1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, ожидается ErrForbidden", err)
	}
}

func TestLineupService_MigrateImages(t *testing.T) {
	var saved model.Images
	lineups := &mockLineupRepo{
		getByIDFn: func(context.Context, string) (*model.Lineup, error) { return ownedLineup(), nil },
		updateImagesFn: func(_ context.Context, id string, images model.Images) error {
			saved = images
			return nil
		},
	}
	migrator := &mockMigrator{
		fn: func(images map[model.Slot]string, _ provider.Config, _ MigrateOptions) *MigrationResult {
			return &MigrationResult{
				URLs:   map[model.Slot]string{model.SlotAim: "https://cdn.example.com/aim.webp"},
				Failed: []model.Slot{model.SlotStand},
				Errors: map[model.Slot]string{model.SlotStand: "timeout"},
			}
		},
	}
	svc := newLineupService(lineups, newMemQuotaRepo(), &mockFetcher{}, migrator)

	res, err := svc.MigrateImages(context.Background(), "owner-1", "lineup-1", publicCfg())
	if err != nil {
		t.Fatalf("MigrateImages: %v", err)
	}
	if len(res.Failed) != 1 {
		t.Errorf("Failed = %v", res.Failed)
	}
	if saved[model.SlotAim].URL != "https://cdn.example.com/aim.webp" || saved[model.SlotAim].Description != "прицел" {
		t.Errorf("aim = %+v", saved[model.SlotAim])
	}
	if saved[model.SlotStand].URL != "https://src.example.com/stand.webp" {
		t.Errorf("stand = %+v, ожидается исходный URL", saved[model.SlotStand])
	}

	incomplete := provider.NewConfig(provider.Qiniu, map[string]string{"bucket": "b"})
	if _, err := svc.MigrateImages(context.Background(), "owner-1", "lineup-1", incomplete); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, ожидается ErrValidation", err)
	}
}

func TestLineupService_MigrateImagesRejectsInternalTargets(t *testing.T) {
	calls := 0
	migrator := &mockMigrator{
		fn: func(map[model.Slot]string, provider.Config, MigrateOptions) *MigrationResult {
			calls++
			return &MigrationResult{}
		},
	}
	lineups := &mockLineupRepo{
		getByIDFn: func(context.Context, string) (*model.Lineup, error) { return ownedLineup(), nil },
	}
	svc := newLineupService(lineups, newMemQuotaRepo(), &mockFetcher{}, migrator)

	qiniu := provider.NewConfig(provider.Qiniu, map[string]string{
		"accessKey": "ak", "secretKey": "sk", "bucket": "b", "region": "z0",
		"domain": "cdn.example.com", "upHost": "http://10.0.0.1",
	})
	targets := map[string]provider.Config{
		"endpoint":  publicCfg().With("endpoint", "http://127.0.0.1:9000"),
		"region":    publicCfg().With("region", "127.0.0.1:9000/"),
		"local":     tempCfg(),
		"qiniuHost": qiniu,
	}
	for name, target := range targets {
		t.Run(name, func(t *testing.T) {
			_, err := svc.MigrateImages(context.Background(), "owner-1", "lineup-1", target)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, ожидается ErrValidation", err)
			}
		})
	}
	if calls != 0 {
		t.Errorf("перенос вызван %d раз", calls)
	}
}

func TestLineupService_DeletePublic(t *testing.T) {
	publics := newMemPublicRepo()
	pl := &model.PublicLineup{SourceID: ptr("lineup-1")}
	_ = publics.Create(context.Background(), pl)
	svc := NewLineupService(&mockLineupRepo{}, publics, &memDownloadLogs{}, newTestQuota(newMemQuotaRepo(), 1, 1), &mockMigrator{}, &mockFetcher{}, 1, testLogger())

	if err := svc.DeletePublic(context.Background(), pl.ID, "mod-1"); err != nil {
		t.Fatalf("DeletePublic: %v", err)
	}
	if err := svc.DeletePublic(context.Background(), pl.ID, "mod-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("повтор: err = %v, ожидается ErrNotFound", err)
	}
}

func TestLineupService_DeletePublicMany(t *testing.T) {
	publics := newMemPublicRepo()
	var ids []string
	for _, src := range []string{"lineup-1", "lineup-2", "lineup-3"} {
		pl := &model.PublicLineup{SourceID: ptr(src)}
		_ = publics.Create(context.Background(), pl)
		ids = append(ids, pl.ID)
	}
	svc := NewLineupService(&mockLineupRepo{}, publics, &memDownloadLogs{}, newTestQuota(newMemQuotaRepo(), 1, 1), &mockMigrator{}, &mockFetcher{}, 1, testLogger())

	missing := uuid.NewString()
	res, err := svc.DeletePublicMany(context.Background(),
		[]string{ids[0], strings.ToUpper(ids[2]), ids[0], missing}, "mod-1")
	if err != nil {
		t.Fatalf("DeletePublicMany: %v", err)
	}
	if len(res.Deleted) != 2 || res.Deleted[0] != ids[0] || res.Deleted[1] != ids[2] {
		t.Errorf("Deleted = %v", res.Deleted)
	}
	if len(res.Missing) != 1 || res.Missing[0] != missing {
		t.Errorf("Missing = %v", res.Missing)
	}
	if publics.count() != 1 {
		t.Errorf("осталось записей = %d, ожидается 1", publics.count())
	}
}

func TestLineupService_DeletePublicManyValidation(t *testing.T) {
	publics := newMemPublicRepo()
	svc := NewLineupService(&mockLineupRepo{}, publics, &memDownloadLogs{}, newTestQuota(newMemQuotaRepo(), 1, 1), &mockMigrator{}, &mockFetcher{}, 1, testLogger())

	tooMany := make([]string, MaxBulkDelete+1)
	for i := range tooMany {
		tooMany[i] = uuid.NewString()
	}
	tests := map[string][]string{
		"пустой список":     nil,
		"не UUID":           {uuid.NewString(), "public-1"},
		"слишком много ids": tooMany,
	}
	for name, ids := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.DeletePublicMany(context.Background(), ids, "mod-1"); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, ожидается ErrValidation", err)
			}
		})
	}
}
