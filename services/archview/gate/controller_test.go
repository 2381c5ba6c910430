// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gate

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/AleutianAI/archview/services/archview/review"
)

func trackedStore(fps map[string]Fingerprint) *MemoryStore {
	t := NewTracking()
	for k, v := range fps {
		t.Fingerprints[k] = v
	}
	return &MemoryStore{State: t}
}

func fp(digest string) Fingerprint {
	return Fingerprint{Digest: digest, FactDigest: "facts-" + digest}
}

func TestController_Evaluate_CleanWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	current := map[string]Fingerprint{
		"dependencies": fp("d1"),
		"hierarchy":    fp("h1"),
	}
	store := trackedStore(current)
	controller := NewController(store, StaticChangeSet(nil), ControllerOptions{ReviewDoc: "docs/architecture.md"})

	// Gate idempotence: Clean -> Clean with no store mutation.
	for i := 0; i < 3; i++ {
		decision, err := controller.Evaluate(ctx, current, &review.Report{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.State != StateClean {
			t.Fatalf("run %d: expected clean, got %s", i, decision.State)
		}
		if decision.Approved {
			t.Error("no approval should happen when nothing changed")
		}
	}
	if store.Commits != 0 {
		t.Errorf("clean evaluations must not mutate the store, got %d commits", store.Commits)
	}
}

func TestController_Evaluate_BlockedWithoutReview(t *testing.T) {
	ctx := context.Background()
	store := trackedStore(map[string]Fingerprint{"dependencies": fp("old")})
	report := &review.Report{AddedModules: []string{"src/new.ts"}}
	controller := NewController(store, StaticChangeSet{"src/new.ts"}, ControllerOptions{ReviewDoc: "docs/architecture.md"})

	decision, err := controller.Evaluate(ctx, map[string]Fingerprint{"dependencies": fp("new")}, report)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decision.State != StateBlocked {
		t.Fatalf("expected blocked, got %s", decision.State)
	}
	if !reflect.DeepEqual(decision.ChangedKinds, []string{"dependencies"}) {
		t.Errorf("expected changed kind dependencies, got %v", decision.ChangedKinds)
	}
	if decision.Report != report {
		t.Error("blocked decision must carry the review report")
	}
	if store.Commits != 0 {
		t.Error("blocked evaluation must leave the store untouched")
	}
}

func TestController_Evaluate_ApprovedWithStagedReview(t *testing.T) {
	ctx := context.Background()
	store := trackedStore(map[string]Fingerprint{"dependencies": fp("old")})
	current := map[string]Fingerprint{"dependencies": fp("new"), "hierarchy": fp("h1")}
	controller := NewController(store,
		StaticChangeSet{"src/new.ts", "docs/architecture.md"},
		ControllerOptions{ReviewDoc: "docs/architecture.md"})

	decision, err := controller.Evaluate(ctx, current, &review.Report{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decision.State != StateClean || !decision.Approved {
		t.Fatalf("expected approved clean, got %+v", decision)
	}
	if store.Commits != 1 {
		t.Fatalf("expected one commit, got %d", store.Commits)
	}
	if !reflect.DeepEqual(store.State.Fingerprints, current) {
		t.Errorf("store must hold the new fingerprints, got %v", store.State.Fingerprints)
	}

	// A following run sees the persisted fingerprints and stays clean.
	decision, err = controller.Evaluate(ctx, current, &review.Report{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.State != StateClean || decision.Approved {
		t.Errorf("expected plain clean after approval, got %+v", decision)
	}
}

func TestController_Evaluate_StoreErrorsAreFatal(t *testing.T) {
	ctx := context.Background()
	current := map[string]Fingerprint{"dependencies": fp("new")}

	t.Run("load failure", func(t *testing.T) {
		store := &MemoryStore{FailLoad: errors.New("disk gone")}
		controller := NewController(store, StaticChangeSet(nil), ControllerOptions{})
		if _, err := controller.Evaluate(ctx, current, nil); err == nil {
			t.Fatal("expected load error to be fatal")
		}
	})

	t.Run("commit failure", func(t *testing.T) {
		store := &MemoryStore{FailCommit: errors.New("disk full")}
		controller := NewController(store,
			StaticChangeSet{"docs/architecture.md"},
			ControllerOptions{ReviewDoc: "docs/architecture.md"})
		if _, err := controller.Evaluate(ctx, current, nil); err == nil {
			t.Fatal("expected commit error to be fatal")
		}
	})
}

func TestController_Evaluate_NoReviewDocConfigured(t *testing.T) {
	ctx := context.Background()
	store := trackedStore(nil)
	controller := NewController(store, StaticChangeSet{"anything.md"}, ControllerOptions{})

	decision, err := controller.Evaluate(ctx, map[string]Fingerprint{"dependencies": fp("d1")}, &review.Report{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.State != StateBlocked {
		t.Errorf("without a review doc a changed diagram must block, got %s", decision.State)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir() + "/archview/tracking.yaml")

	// Missing file loads empty state.
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded.Fingerprints) != 0 {
		t.Errorf("expected empty state, got %v", loaded.Fingerprints)
	}

	want := NewTracking()
	want.Fingerprints["dependencies"] = fp("d1")
	want.Fingerprints["hierarchy"] = fp("h1")
	if err := store.Commit(ctx, want); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	loaded, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Fingerprints, want.Fingerprints) {
		t.Errorf("round trip mismatch: %v != %v", loaded.Fingerprints, want.Fingerprints)
	}
	if loaded.UpdatedAt == "" {
		t.Error("expected updated_at to be set")
	}
}

func TestGitChangeSet_ParsesUnifiedDiff(t *testing.T) {
	// Exercise the diff-parsing path without a live repo by feeding
	// the parser the same payload git would produce.
	const patch = `diff --git a/docs/architecture.md b/docs/architecture.md
index 0000000..1111111 100644
--- a/docs/architecture.md
+++ b/docs/architecture.md
@@ -1,1 +1,2 @@
 # Architecture
+Updated for the new module.
`
	files, err := parseChangedFiles([]byte(patch))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(files, []string{"docs/architecture.md"}) {
		t.Errorf("expected review doc path, got %v", files)
	}
}

func TestParseChangedFiles_Deletion(t *testing.T) {
	const patch = `diff --git a/src/old.ts b/src/old.ts
deleted file mode 100644
index 1111111..0000000
--- a/src/old.ts
+++ /dev/null
@@ -1,1 +0,0 @@
-export const gone = true;
`
	files, err := parseChangedFiles([]byte(patch))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(files, []string{"src/old.ts"}) {
		t.Errorf("expected deleted path from orig name, got %v", files)
	}
}
