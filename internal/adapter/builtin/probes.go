package builtin

import (
	"context"
	"fmt"
	"reflect"

	"gqlscope/internal/operation"
	"gqlscope/internal/refclient"
	"gqlscope/internal/track"
)

// accessor is the capability-checked view over one client shape. All
// implementations are strictly read-only over client state.
type accessor interface {
	queries() ([]track.QueryState, error)
	mutations() ([]track.MutationState, error)
	store() (map[string]any, error)
}

// executeAccessor is available when the shape exposes the client transport,
// which introspection needs for a cache-bypassing round-trip.
type executeAccessor interface {
	accessor
	execute(ctx context.Context, document string) ([]byte, error)
}

// hookAccessor is available when the shape exposes the request-pipeline
// hook; its presence selects the interception strategy over polling.
type hookAccessor interface {
	accessor
	installHook(in *track.Interceptor) (remove func())
}

// Known client shapes, current first. Snapshot accessors without a hook
// point existed before the hook was added; the reflection fallback covers
// older clients that only exported raw registry fields.
type (
	recordSnapshots interface {
		Registry() []refclient.QueryRecord
		MutationLog() []refclient.MutationRecord
		Store() map[string]any
	}
	transport interface {
		Do(ctx context.Context, document string, variables map[string]any) ([]byte, error)
	}
	hookable interface {
		SetHook(refclient.Hook)
	}
)

// shapeProbes is the ordered strategy list, newest supported shape first.
var shapeProbes = []struct {
	name  string
	match func(client any) accessor
}{
	{"hooked-v2", matchHooked},
	{"snapshot-v1", matchSnapshot},
	{"legacy-reflect", matchReflect},
}

func probe(client any) (accessor, string) {
	for _, p := range shapeProbes {
		if acc := p.match(client); acc != nil {
			return acc, p.name
		}
	}
	return nil, ""
}

func matchHooked(client any) accessor {
	snap, ok := client.(recordSnapshots)
	if !ok {
		return nil
	}
	hooks, ok := client.(hookable)
	if !ok {
		return nil
	}
	acc := &hookedAccessor{hooks: hooks}
	acc.snap = snap
	acc.doer, _ = client.(transport)
	return acc
}

func matchSnapshot(client any) accessor {
	snap, ok := client.(recordSnapshots)
	if !ok {
		return nil
	}
	acc := &snapshotAccessor{snap: snap}
	acc.doer, _ = client.(transport)
	return acc
}

// snapshotAccessor reads the client through its copy-returning snapshot
// methods.
type snapshotAccessor struct {
	snap recordSnapshots
	doer transport
}

func (a *snapshotAccessor) queries() ([]track.QueryState, error) {
	records := a.snap.Registry()
	out := make([]track.QueryState, len(records))
	for i, rec := range records {
		out[i] = track.QueryState{
			Key:       rec.Key,
			Document:  rec.Document,
			Variables: rec.Variables,
			InFlight:  rec.InFlight,
			Data:      rec.Data,
			Errors:    convertErrors(rec.Errors),
		}
	}
	return out, nil
}

func (a *snapshotAccessor) mutations() ([]track.MutationState, error) {
	records := a.snap.MutationLog()
	out := make([]track.MutationState, len(records))
	for i, rec := range records {
		out[i] = track.MutationState{
			Document:  rec.Document,
			Variables: rec.Variables,
			Loading:   rec.Loading,
			Data:      rec.Data,
			Errors:    convertErrors(rec.Errors),
		}
	}
	return out, nil
}

func (a *snapshotAccessor) store() (map[string]any, error) {
	return a.snap.Store(), nil
}

func (a *snapshotAccessor) execute(ctx context.Context, document string) ([]byte, error) {
	if a.doer == nil {
		return nil, fmt.Errorf("builtin: client shape exposes no transport")
	}
	return a.doer.Do(ctx, document, nil)
}

// hookedAccessor adds the interception hook on top of snapshot access.
type hookedAccessor struct {
	snapshotAccessor
	hooks hookable
}

func (a *hookedAccessor) installHook(in *track.Interceptor) func() {
	a.hooks.SetHook(&interceptHook{in: in})
	return func() { a.hooks.SetHook(nil) }
}

// matchReflect handles legacy clients that exported their registries as raw
// struct fields: Queries (map or slice), Mutations (slice), Cache (map).
func matchReflect(client any) accessor {
	v := reflect.ValueOf(client)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	if !v.FieldByName("Queries").IsValid() && !v.FieldByName("Mutations").IsValid() {
		return nil
	}
	return &reflectAccessor{root: v}
}

// reflectAccessor is the oldest fallback: best-effort field reads, never a
// panic outward. Shape drift inside a field shows up as an error the sweep
// logs and skips.
type reflectAccessor struct {
	root reflect.Value
}

func (a *reflectAccessor) queries() (states []track.QueryState, err error) {
	defer func() {
		if r := recover(); r != nil {
			states, err = nil, fmt.Errorf("builtin: reflect query access: %v", r)
		}
	}()

	field := a.root.FieldByName("Queries")
	if !field.IsValid() {
		return nil, nil
	}
	switch field.Kind() {
	case reflect.Map:
		iter := field.MapRange()
		for iter.Next() {
			st := queryStateFrom(iter.Value())
			if st.Key == "" {
				st.Key = fmt.Sprintf("%v", iter.Key().Interface())
			}
			states = append(states, st)
		}
	case reflect.Slice:
		for i := 0; i < field.Len(); i++ {
			st := queryStateFrom(field.Index(i))
			if st.Key == "" {
				st.Key = fmt.Sprintf("#%d", i)
			}
			states = append(states, st)
		}
	default:
		return nil, fmt.Errorf("builtin: unexpected Queries kind %s", field.Kind())
	}
	return states, nil
}

func (a *reflectAccessor) mutations() (states []track.MutationState, err error) {
	defer func() {
		if r := recover(); r != nil {
			states, err = nil, fmt.Errorf("builtin: reflect mutation access: %v", r)
		}
	}()

	field := a.root.FieldByName("Mutations")
	if !field.IsValid() || field.Kind() != reflect.Slice {
		return nil, nil
	}
	for i := 0; i < field.Len(); i++ {
		el := deref(field.Index(i))
		st := track.MutationState{
			Document:  stringField(el, "Document"),
			Variables: mapField(el, "Variables"),
			Loading:   boolField(el, "Loading"),
			Data:      anyField(el, "Data"),
			Errors:    errorsField(el),
		}
		if !hasField(el, "Loading") {
			st.Loading = operation.ClassifyResult(st.Data, st.Errors) == operation.StatusLoading
		}
		states = append(states, st)
	}
	return states, nil
}

func (a *reflectAccessor) store() (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("builtin: reflect cache access: %v", r)
		}
	}()

	field := a.root.FieldByName("Cache")
	if !field.IsValid() || field.Kind() != reflect.Map {
		return nil, nil
	}
	out = make(map[string]any, field.Len())
	iter := field.MapRange()
	for iter.Next() {
		out[fmt.Sprintf("%v", iter.Key().Interface())] = iter.Value().Interface()
	}
	return out, nil
}

func queryStateFrom(v reflect.Value) track.QueryState {
	el := deref(v)
	st := track.QueryState{
		Key:       stringField(el, "Key"),
		Document:  stringField(el, "Document"),
		Variables: mapField(el, "Variables"),
		InFlight:  boolField(el, "InFlight"),
		Data:      anyField(el, "Data"),
		Errors:    errorsField(el),
	}
	// Shapes predating the loading flag: infer it from the result.
	if !hasField(el, "InFlight") {
		st.InFlight = operation.ClassifyResult(st.Data, st.Errors) == operation.StatusLoading
	}
	return st
}

func deref(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

func hasField(v reflect.Value, name string) bool {
	return v.Kind() == reflect.Struct && v.FieldByName(name).IsValid()
}

func stringField(v reflect.Value, name string) string {
	if v.Kind() != reflect.Struct {
		return ""
	}
	f := v.FieldByName(name)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return ""
}

func boolField(v reflect.Value, name string) bool {
	if v.Kind() != reflect.Struct {
		return false
	}
	f := v.FieldByName(name)
	return f.IsValid() && f.Kind() == reflect.Bool && f.Bool()
}

func anyField(v reflect.Value, name string) any {
	if v.Kind() != reflect.Struct {
		return nil
	}
	f := v.FieldByName(name)
	if f.IsValid() && f.CanInterface() && !isNilable(f) {
		return f.Interface()
	}
	return nil
}

func mapField(v reflect.Value, name string) map[string]any {
	raw := anyField(v, name)
	m, _ := raw.(map[string]any)
	return m
}

func isNilable(f reflect.Value) bool {
	switch f.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return f.IsNil()
	default:
		return false
	}
}

// errorsField reads any slice of error-like values exposing a Message field.
func errorsField(v reflect.Value) []operation.ErrorDetail {
	if v.Kind() != reflect.Struct {
		return nil
	}
	f := v.FieldByName("Errors")
	if !f.IsValid() || f.Kind() != reflect.Slice || f.Len() == 0 {
		return nil
	}
	out := make([]operation.ErrorDetail, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		el := deref(f.Index(i))
		out = append(out, operation.ErrorDetail{Message: stringField(el, "Message")})
	}
	return out
}
