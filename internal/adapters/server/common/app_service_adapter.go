package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service item APIs.
type AppServiceAdapter struct {
	service *app.Service
}

var _ ItemService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListItems lists items of one kind, or all items when kind is empty.
func (a *AppServiceAdapter) ListItems(ctx context.Context, kind string) ([]ItemView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	domainKind, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	items, err := a.service.List(ctx, domainKind)
	if err != nil {
		return nil, mapAppError("list items", err)
	}
	return MapItems(items), nil
}

// GetItem resolves one item and records the view in history.
func (a *AppServiceAdapter) GetItem(ctx context.Context, kind string, id int) (ItemView, error) {
	if err := a.ready(); err != nil {
		return ItemView{}, err
	}
	domainKind, err := parseKind(kind)
	if err != nil {
		return ItemView{}, err
	}
	if id <= 0 {
		return ItemView{}, fmt.Errorf("get item: %w", errors.Join(ErrInvalidRequest, domain.ErrInvalidID))
	}
	item, err := a.service.Get(ctx, domainKind, id)
	if err != nil {
		return ItemView{}, mapAppError(fmt.Sprintf("get item %d", id), err)
	}
	return MapItem(item), nil
}

// SaveItem creates the payload item when its id is zero and replaces it otherwise.
// A non-empty kind must agree with the payload type.
func (a *AppServiceAdapter) SaveItem(ctx context.Context, kind string, payload ItemPayload) (SaveResult, error) {
	if err := a.ready(); err != nil {
		return SaveResult{}, err
	}
	in, err := ItemInputFromPayload(kind, payload)
	if err != nil {
		return SaveResult{}, err
	}
	item, created, err := a.service.Save(ctx, payload.ID, in)
	if err != nil {
		return SaveResult{}, mapAppError("save item", err)
	}
	return SaveResult{Item: MapItem(item), Created: created}, nil
}

// DeleteItem removes one item. Removing an epic removes its subtasks.
func (a *AppServiceAdapter) DeleteItem(ctx context.Context, kind string, id int) error {
	if err := a.ready(); err != nil {
		return err
	}
	domainKind, err := parseKind(kind)
	if err != nil {
		return err
	}
	if err := a.service.Remove(ctx, domainKind, id); err != nil {
		return mapAppError(fmt.Sprintf("delete item %d", id), err)
	}
	return nil
}

// DeleteAllItems clears the store.
func (a *AppServiceAdapter) DeleteAllItems(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	return mapAppError("delete all items", a.service.RemoveAll(ctx))
}

// ListSubtasks lists the subtasks of one epic.
func (a *AppServiceAdapter) ListSubtasks(ctx context.Context, epicID int) ([]ItemView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.SubtasksOf(ctx, epicID)
	if err != nil {
		return nil, mapAppError(fmt.Sprintf("list subtasks of %d", epicID), err)
	}
	return MapItems(items), nil
}

// Prioritized lists scheduled items, earliest first.
func (a *AppServiceAdapter) Prioritized(ctx context.Context) ([]ItemView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.Prioritized(ctx)
	if err != nil {
		return nil, mapAppError("list prioritized items", err)
	}
	return MapItems(items), nil
}

// History lists items read by id, oldest view first.
func (a *AppServiceAdapter) History(ctx context.Context) ([]ItemView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.History(ctx)
	if err != nil {
		return nil, mapAppError("list history", err)
	}
	return MapItems(items), nil
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

// parseKind converts a transport type tag into a domain kind.
func parseKind(raw string) (domain.Kind, error) {
	kind, err := NormalizeKind(raw)
	if err != nil {
		return "", err
	}
	return domain.Kind(kind), nil
}

// ItemInputFromPayload validates the wire payload shape and converts it into domain input.
func ItemInputFromPayload(kind string, payload ItemPayload) (domain.ItemInput, error) {
	routeKind, err := NormalizeKind(kind)
	if err != nil {
		return domain.ItemInput{}, err
	}
	payloadKind, err := NormalizeKind(payload.Type)
	if err != nil {
		return domain.ItemInput{}, err
	}
	switch {
	case payloadKind == "":
		payloadKind = routeKind
	case routeKind != "" && payloadKind != routeKind:
		return domain.ItemInput{}, fmt.Errorf("type %s does not match %s: %w", payloadKind, routeKind, ErrInvalidRequest)
	}
	if payload.ID < 0 {
		return domain.ItemInput{}, fmt.Errorf("id must not be negative: %w", ErrInvalidRequest)
	}

	in := domain.ItemInput{
		Kind:        domain.Kind(payloadKind),
		Name:        payload.Name,
		Description: payload.Description,
		EpicID:      payload.EpicID,
	}
	if strings.TrimSpace(payload.Status) != "" {
		status, err := domain.ParseStatus(payload.Status)
		if err != nil {
			return domain.ItemInput{}, fmt.Errorf("status %q: %w", payload.Status, errors.Join(ErrInvalidRequest, err))
		}
		in.Status = status
	}
	in.Window, err = parseWindow(payload.StartTime, payload.Duration)
	if err != nil {
		return domain.ItemInput{}, err
	}
	in.BaseWindow, err = parseWindow(payload.EpicStartTime, payload.EpicDuration)
	if err != nil {
		return domain.ItemInput{}, err
	}
	return in, nil
}

// parseWindow decodes one start/duration pair from wire strings.
func parseWindow(start, duration string) (domain.Window, error) {
	ts, err := domain.ParseTime(start)
	if err != nil {
		return domain.Window{}, errors.Join(ErrInvalidRequest, err)
	}
	d, err := domain.ParseDuration(duration)
	if err != nil {
		return domain.Window{}, errors.Join(ErrInvalidRequest, err)
	}
	return domain.Window{Start: ts, Duration: d}, nil
}

// MapItems converts domain items into wire views.
func MapItems(items []domain.Item) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, MapItem(item))
	}
	return out
}

// MapItem converts one domain item into its wire view.
func MapItem(item domain.Item) ItemView {
	view := ItemView{
		ID:          item.ID,
		Type:        string(item.Kind),
		Name:        item.Name,
		Description: item.Description,
		Status:      string(item.Status),
		StartTime:   domain.FormatTime(item.Window.Start),
	}
	if item.Window.Duration > 0 {
		view.Duration = item.Window.Duration.String()
	}
	if item.Window.Scheduled() {
		view.EndTime = domain.FormatTime(item.Window.End())
	}
	switch item.Kind {
	case domain.KindEpic:
		view.SubtaskIDs = append([]int{}, item.SubtaskIDs...)
		view.EpicStartTime = domain.FormatTime(item.BaseWindow.Start)
		if item.BaseWindow.Duration > 0 {
			view.EpicDuration = item.BaseWindow.Duration.String()
		}
	case domain.KindSubtask:
		view.EpicID = item.EpicID
	}
	return view
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrMissingParent):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrMissingParent, err))
	case errors.Is(err, app.ErrScheduleConflict):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrScheduleConflict, err))
	case errors.Is(err, app.ErrDuplicateID):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrDuplicateID, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidWindow),
		errors.Is(err, domain.ErrInvalidParentID),
		errors.Is(err, domain.ErrInvalidRecord):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
