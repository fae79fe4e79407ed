package gateway

import (
	"context"

	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
)

// List addresses the embedded child list Field of the first container
// matching Container. Children are identified by their Key field.
type List struct {
	Container query.Query
	Field     string
	Key       string
}

// AppendChildren appends children to the end of the list.
func AppendChildren[T any](g *Gateway, l List, children []T, enc Encoder[T]) reactive.Single[struct{}] {
	return g.mutateList("append_children", l, func(list []record.Object) ([]record.Object, error) {
		for _, child := range children {
			obj, err := enc(child)
			if err != nil {
				return nil, err
			}
			list = append(list, obj)
		}
		return list, nil
	})
}

// UpdateChild replaces the child whose key equals child's key.
func UpdateChild[T any](g *Gateway, l List, child T, enc Encoder[T]) reactive.Single[struct{}] {
	return g.mutateList("update_child", l, func(list []record.Object) ([]record.Object, error) {
		obj, err := enc(child)
		if err != nil {
			return nil, err
		}
		key := query.Lookup(obj, l.Key)
		i, err := l.index(list, key)
		if err != nil {
			return nil, err
		}
		list[i] = obj
		return list, nil
	})
}

// DeleteChild removes the child whose key equals key.
func (g *Gateway) DeleteChild(l List, key record.Value) reactive.Single[struct{}] {
	return g.mutateList("delete_child", l, func(list []record.Object) ([]record.Object, error) {
		i, err := l.index(list, key)
		if err != nil {
			return nil, err
		}
		return append(list[:i], list[i+1:]...), nil
	})
}

// SaveContainerIfAbsent saves container under UpdateAll unless a record
// matching l.Container already exists.
func SaveContainerIfAbsent[T any](g *Gateway, l List, container T, enc Encoder[T]) reactive.Single[struct{}] {
	return reactive.Then(g.Count(l.Container), func(n int) reactive.Single[struct{}] {
		if n > 0 {
			return reactive.AsSingle("save_container_if_absent", reactive.Just(struct{}{}))
		}
		return Save(g, l.Container.Kind, container, enc, store.UpdateAll)
	})
}

// mutateList loads the container inside one transaction, applies fn to a
// copy of its list and writes the container back.
func (g *Gateway) mutateList(op string, l List, fn func([]record.Object) ([]record.Object, error)) reactive.Single[struct{}] {
	return point(g, op, func(ctx context.Context, s *store.Store) (struct{}, error) {
		err := s.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
			recs, err := tx.Query(ctx, l.Container)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return &ContainerNotFoundError{Kind: l.Container.Kind}
			}
			container := recs[0].Body

			list, err := container.Objects(l.Field)
			if err != nil {
				return err
			}
			next, err := fn(append([]record.Object(nil), list...))
			if err != nil {
				return err
			}
			return tx.Save(ctx, l.Container.Kind, container.WithObjects(l.Field, next), store.UpdateAll)
		})
		return struct{}{}, err
	})
}

func (l List) index(list []record.Object, key record.Value) (int, error) {
	if key != nil {
		for i, child := range list {
			if record.Equal(query.Lookup(child, l.Key), key) {
				return i, nil
			}
		}
	}
	return -1, &ChildNotFoundError{Container: l.Container.Kind, List: l.Field, Key: key}
}
