package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chris/dayplan/internal/db"
)

// Builtin returns the assistant's tool catalog.
func Builtin() *Registry {
	return NewRegistry(
		&Definition[queryInput]{
			Name:        "query_entities",
			Description: "List the user's entities of one type, optionally filtered by status, priority, project, parent or due date. Archived and deleted records are excluded unless requested. Returns at most 10 items unless limit is set.",
			Class:       ClassRead,
			Handle:      queryEntities,
		},
		&Definition[searchInput]{
			Name:        "search_entities",
			Description: "Search the user's entities by text. Use this to find an item the user refers to by name before acting on it.",
			Class:       ClassRead,
			Handle:      searchEntities,
		},
		&Definition[getInput]{
			Name:        "get_entity",
			Description: "Get one entity by type and id.",
			Class:       ClassRead,
			Handle:      getEntity,
		},
		&Definition[createInput]{
			Name:        "create_entity",
			Description: "Create a task, event, note, project, tag, comment, link or attachment record.",
			Class:       ClassWrite,
			Handle:      createEntity,
		},
		&Definition[updateInput]{
			Name:        "update_entity",
			Description: "Change fields of an entity. Send only the fields that change; everything else is left as it is.",
			Class:       ClassWrite,
			Handle:      updateEntity,
		},
		&Definition[completeInput]{
			Name:        "complete_task",
			Description: "Mark a task as done.",
			Class:       ClassWrite,
			Handle:      completeTask,
		},
		&Definition[deleteInput]{
			Name:        "delete_entity",
			Description: "Delete an entity. Only call this with confirm=true after the user explicitly confirmed the deletion of this exact item.",
			Class:       ClassDestructive,
			Handle:      deleteEntity,
		},
		&Definition[overviewInput]{
			Name:        "get_overview",
			Description: "Get current counts: open, due and overdue tasks, today's and tomorrow's events, active projects.",
			Class:       ClassRead,
			Handle:      getOverview,
		},
	)
}

type listData struct {
	Count int         `json:"count"`
	Limit int         `json:"limit"`
	Items []db.Entity `json:"items"`
}

func queryEntities(ctx context.Context, env Env, deps Deps, in queryInput) (any, error) {
	kind, _ := parseKind(in.EntityType)
	f := in.filter()
	entities, err := deps.Repo.ListEntities(ctx, env.UserID, kind, f)
	if err != nil {
		return nil, err
	}
	entities, err = checkOwned(env, entities, f.IncludeArchived, f.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	for i := range entities {
		annotate(env, &entities[i])
	}
	return listData{Count: len(entities), Limit: f.Limit, Items: nonNil(entities)}, nil
}

func searchEntities(ctx context.Context, env Env, deps Deps, in searchInput) (any, error) {
	kinds := db.Kinds
	if in.EntityType != "" {
		kind, _ := parseKind(in.EntityType)
		kinds = []db.Kind{kind}
	}
	limit := effectiveLimit(in.Limit)
	var all []db.Entity
	for _, kind := range kinds {
		if len(all) >= limit {
			break
		}
		entities, err := deps.Repo.ListEntities(ctx, env.UserID, kind, db.Filter{
			Query:           in.Query,
			IncludeArchived: in.IncludeArchived,
			IncludeDeleted:  in.IncludeDeleted,
			Limit:           limit - len(all),
		})
		if err != nil {
			return nil, err
		}
		entities, err = checkOwned(env, entities, in.IncludeArchived, in.IncludeDeleted)
		if err != nil {
			return nil, err
		}
		for i := range entities {
			annotate(env, &entities[i])
		}
		all = append(all, entities...)
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return listData{Count: len(all), Limit: limit, Items: nonNil(all)}, nil
}

func getEntity(ctx context.Context, env Env, deps Deps, in getInput) (any, error) {
	kind, _ := parseKind(in.EntityType)
	return loadOwned(ctx, env, deps, kind, in.ID, in.IncludeDeleted)
}

func createEntity(ctx context.Context, env Env, deps Deps, in createInput) (any, error) {
	kind, _ := parseKind(in.EntityType)
	cols, err := in.columns(kind, env.location())
	if err != nil {
		return nil, err
	}
	if parentType, ok := cols["entity_type"].(string); ok {
		parentID, _ := cols["entity_id"].(int64)
		if _, err := loadOwned(ctx, env, deps, db.Kind(parentType), parentID, false); err != nil {
			return nil, err
		}
	}
	if pid, ok := cols["project_id"].(int64); ok {
		if _, err := loadOwned(ctx, env, deps, db.KindProject, pid, false); err != nil {
			return nil, err
		}
	}
	id, err := deps.Repo.CreateEntity(ctx, env.UserID, kind, cols)
	if err != nil {
		return nil, err
	}
	return loadOwned(ctx, env, deps, kind, id, false)
}

func updateEntity(ctx context.Context, env Env, deps Deps, in updateInput) (any, error) {
	kind, _ := parseKind(in.EntityType)
	cols, err := in.columns(kind, env.location())
	if err != nil {
		return nil, err
	}
	_, retype := cols["entity_type"]
	_, repoint := cols["entity_id"]
	if retype || repoint {
		if err := checkNewParent(ctx, env, deps, kind, in.ID, cols); err != nil {
			return nil, err
		}
	}
	if pid, ok := cols["project_id"].(int64); ok {
		if _, err := loadOwned(ctx, env, deps, db.KindProject, pid, false); err != nil {
			return nil, err
		}
	}
	if err := deps.Repo.UpdateEntity(ctx, env.UserID, kind, in.ID, cols); err != nil {
		return nil, err
	}
	return loadOwned(ctx, env, deps, kind, in.ID, false)
}

// checkNewParent loads the parent a child row will point at once cols are
// applied. The half of the reference cols leaves out comes from the stored row.
func checkNewParent(ctx context.Context, env Env, deps Deps, kind db.Kind, id int64, cols map[string]any) error {
	current, err := loadOwned(ctx, env, deps, kind, id, false)
	if err != nil {
		return err
	}
	parentType, ok := cols["entity_type"].(string)
	if !ok {
		parentType, _ = current.Fields["entity_type"].(string)
	}
	parentID, ok := cols["entity_id"].(int64)
	if !ok {
		parentID, _ = current.Fields["entity_id"].(int64)
	}
	_, err = loadOwned(ctx, env, deps, db.Kind(parentType), parentID, false)
	return err
}

func completeTask(ctx context.Context, env Env, deps Deps, in completeInput) (any, error) {
	if err := deps.Repo.CompleteTask(ctx, env.UserID, in.ID, env.Now); err != nil {
		return nil, err
	}
	return loadOwned(ctx, env, deps, db.KindTask, in.ID, false)
}

type deletedData struct {
	Deleted db.Entity `json:"deleted"`
}

func deleteEntity(ctx context.Context, env Env, deps Deps, in deleteInput) (any, error) {
	if !in.Confirm || !env.UserConfirmed {
		return nil, errConfirmationRequired
	}
	kind, _ := parseKind(in.EntityType)
	ent, err := loadOwned(ctx, env, deps, kind, in.ID, false)
	if err != nil {
		return nil, err
	}
	if err := deps.Repo.DeleteEntity(ctx, env.UserID, kind, in.ID); err != nil {
		return nil, err
	}
	ent.Deleted = true
	return deletedData{Deleted: *ent}, nil
}

func getOverview(ctx context.Context, env Env, deps Deps, _ overviewInput) (any, error) {
	if deps.Stats == nil {
		return nil, fmt.Errorf("overview is not configured")
	}
	return deps.Stats.Get(ctx, env.UserID, env.Now, env.location())
}

func loadOwned(ctx context.Context, env Env, deps Deps, kind db.Kind, id int64, includeDeleted bool) (*db.Entity, error) {
	ent, err := deps.Repo.GetEntity(ctx, env.UserID, kind, id, includeDeleted)
	if err != nil {
		return nil, err
	}
	if err := checkOwnedOne(env, ent); err != nil {
		return nil, err
	}
	annotate(env, ent)
	return ent, nil
}

// annotate adds next_occurrence to recurring events, evaluated in the
// user's timezone so it agrees with the overview counts.
func annotate(env Env, ent *db.Entity) {
	now := env.Now
	if now.IsZero() {
		now = time.Now()
	}
	db.AnnotateOccurrence(ent, now, env.location())
}

func nonNil(entities []db.Entity) []db.Entity {
	if entities == nil {
		return []db.Entity{}
	}
	return entities
}

// IsConfirmation reports whether a user message is an explicit yes to a
// pending destructive action. Action words only count on their own, so
// "delete the dentist task" is a request, not a confirmation.
func IsConfirmation(msg string) bool {
	s := strings.ToLower(strings.TrimSpace(msg))
	s = strings.Trim(s, ".!¡¿? ")
	for _, w := range affirmatives {
		if s == w || strings.HasPrefix(s, w+" ") || strings.HasPrefix(s, w+",") {
			return true
		}
	}
	for _, w := range actionWords {
		if s == w {
			return true
		}
	}
	return false
}

var (
	affirmatives = []string{"yes", "confirm", "confirmed", "go ahead", "sí", "confirmo", "adelante"}
	actionWords  = []string{
		"y", "si", "delete", "delete it", "remove", "remove it", "do it",
		"borrar", "borra", "bórralo", "bórrala", "borralo", "eliminar", "elimina", "elimínalo", "elimínala", "hazlo",
	}
)
