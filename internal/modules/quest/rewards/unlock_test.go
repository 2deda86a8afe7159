package rewards

import (
	"reflect"
	"testing"

	"github.com/yungbote/tastequest-backend/internal/domain/quest"
)

func testTable() Table {
	return NewTable([]quest.RewardThreshold{
		{Count: 8, RewardID: "grand-tasting-menu"},
		{Count: 4, RewardID: "halfway-tasting-flight"},
	})
}

func TestUnlockCrossingThresholds(t *testing.T) {
	tbl := testTable()
	cases := []struct {
		name  string
		total int
		held  []string
		want  []string
	}{
		{"below first", 3, nil, []string{}},
		{"crossing 3 to 4", 4, nil, []string{"halfway-tasting-flight"}},
		{"between", 6, []string{"halfway-tasting-flight"}, []string{}},
		{"crossing 7 to 8", 8, []string{"halfway-tasting-flight"}, []string{"grand-tasting-menu"}},
		{"all at once", 8, nil, []string{"halfway-tasting-flight", "grand-tasting-menu"}},
		{"already complete", 8, []string{"grand-tasting-menu", "halfway-tasting-flight"}, []string{}},
	}
	for _, tc := range cases {
		got := tbl.Unlock(tc.total, tc.held)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestUnlockIsDeterministic(t *testing.T) {
	tbl := testTable()
	a := tbl.Unlock(8, []string{"other"})
	b := tbl.Unlock(8, []string{"other"})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same inputs gave different outputs: %v vs %v", a, b)
	}
}

func TestHeldSetNeverShrinks(t *testing.T) {
	tbl := testTable()
	held := []string{}
	for total := 0; total <= 10; total++ {
		before := append([]string(nil), held...)
		held = Merge(held, tbl.Unlock(total, held))
		for _, id := range before {
			found := false
			for _, h := range held {
				if h == id {
					found = true
				}
			}
			if !found {
				t.Fatalf("reward %q disappeared at total=%d", id, total)
			}
		}
		if !reflect.DeepEqual(held, Merge(held, nil)) {
			t.Fatalf("held set has duplicates: %v", held)
		}
	}
	if !reflect.DeepEqual(held, []string{"halfway-tasting-flight", "grand-tasting-menu"}) {
		t.Fatalf("final held set: %v", held)
	}
}

func TestMergeKeepsOrderAndDropsRepeats(t *testing.T) {
	got := Merge([]string{"a", "b"}, []string{"b", "c", "c"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected merge: %v", got)
	}
}
