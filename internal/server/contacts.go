package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/cardscan/internal/async"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/export"
	"github.com/joseph-ayodele/cardscan/internal/reconcile"
)

// Dispatcher is the part of the pipeline the intake surface drives.
type Dispatcher interface {
	Submit(ctx context.Context, b async.Batch) (*async.BatchHandle, error)
	Units() []entity.WorkUnit
	Discard(clientID string) error
}

type ContactsService struct {
	dispatcher Dispatcher
	reconciler *reconcile.Reconciler
	exporter   *export.Service
	logger     *slog.Logger
}

var _ ContactsServer = (*ContactsService)(nil)

func NewContactsService(d Dispatcher, r *reconcile.Reconciler, exp *export.Service, logger *slog.Logger) *ContactsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactsService{dispatcher: d, reconciler: r, exporter: exp, logger: logger}
}

func (s *ContactsService) ExtractCards(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	batch, err := batchFromStruct(req)
	if err != nil {
		return nil, err
	}
	h, err := s.dispatcher.Submit(ctx, batch)
	if err != nil {
		common.LoggerWith(ctx, s.logger).Warn("extract cards rejected", "files", len(batch.Files), "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{
		"batch_id": h.ID,
		"units":    h.Units(),
	})
}

func (s *ContactsService) ListWorkUnits(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"units":   s.dispatcher.Units(),
		"summary": s.reconciler.View().Summary(),
	})
}

func (s *ContactsService) DiscardWorkUnit(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id := strings.TrimSpace(req.GetValue())
	if id == "" {
		return nil, common.InvalidArgumentError("client_id is required")
	}
	if err := s.dispatcher.Discard(id); err != nil {
		return nil, common.ToStatus(err)
	}
	s.reconciler.View().Discard(id)
	common.LoggerWith(ctx, s.logger).Info("work unit discarded", "client_id", id)
	return &emptypb.Empty{}, nil
}

func (s *ContactsService) ListContacts(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(map[string]any{"entries": s.reconciler.View().Snapshot()})
}

func (s *ContactsService) ReloadContacts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	recs, err := s.reconciler.Reload(ctx)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{"contacts": recs})
}

// UpdateContact applies {id, field, value} to the view and returns once the store call is scheduled.
// With wait=true it returns the store's answer instead.
func (s *ContactsService) UpdateContact(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	f := req.GetFields()
	id, err := parseStoreID(f["id"].GetStringValue())
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	field := entity.ContactField(strings.TrimSpace(f["field"].GetStringValue()))

	var value *string
	switch v := f["value"].GetKind().(type) {
	case nil, *structpb.Value_NullValue:
	case *structpb.Value_StringValue:
		value = &v.StringValue
	default:
		return nil, common.InvalidArgumentError("value must be a string or null")
	}

	m, err := s.reconciler.UpdateField(ctx, id, field, value)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	if f["wait"].GetBoolValue() {
		if err := m.Wait(ctx); err != nil {
			return nil, common.ToStatus(err)
		}
	}
	return &emptypb.Empty{}, nil
}

func (s *ContactsService) DeleteContact(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id, err := parseStoreID(req.GetValue())
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	if _, err := s.reconciler.Delete(ctx, id); err != nil {
		return nil, common.ToStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ClearContacts deletes every stored contact. The request must carry confirm=true.
func (s *ContactsService) ClearContacts(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	confirm := req.GetFields()["confirm"].GetBoolValue()
	if err := s.reconciler.ClearAll(ctx, confirm); err != nil {
		return nil, common.ToStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ExportContacts reads {poc_name, format}; format is "xlsx" (default) or "csv".
func (s *ContactsService) ExportContacts(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	if s.exporter == nil {
		return nil, common.InternalError("export is not configured")
	}
	f := req.GetFields()
	format, err := export.ParseFormat(f["format"].GetStringValue())
	if err != nil {
		return nil, common.ToStatus(err)
	}
	b, err := s.exporter.Export(ctx, f["poc_name"].GetStringValue(), format)
	if err != nil {
		return nil, common.InternalErrorf("export contacts: %v", err)
	}
	return wrapperspb.Bytes(b), nil
}

func parseStoreID(s string) (uuid.UUID, error) {
	v := common.NewValidator().Field("id", strings.TrimSpace(s), common.Required, common.UUID)
	if v.HasErrors() {
		return uuid.Nil, fmt.Errorf("%s", v.ErrorMessage())
	}
	return uuid.Parse(strings.TrimSpace(s))
}

// batchFromStruct reads {poc_name, files: [{client_id, name, mime_type, data}]}; data is base64.
func batchFromStruct(req *structpb.Struct) (async.Batch, error) {
	f := req.GetFields()
	b := async.Batch{POCName: strings.TrimSpace(f["poc_name"].GetStringValue())}
	for i, item := range f["files"].GetListValue().GetValues() {
		file := item.GetStructValue().GetFields()
		data, err := base64.StdEncoding.DecodeString(file["data"].GetStringValue())
		if err != nil {
			return b, common.InvalidArgumentErrorf("files[%d].data is not base64: %v", i, err)
		}
		b.Files = append(b.Files, entity.Upload{
			ClientID: file["client_id"].GetStringValue(),
			Name:     file["name"].GetStringValue(),
			MimeType: file["mime_type"].GetStringValue(),
			Data:     data,
		})
	}
	if len(b.Files) == 0 {
		return b, common.InvalidArgumentError("files is required")
	}
	return b, nil
}
