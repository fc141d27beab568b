// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTableEmpty(t *testing.T) {
	tbl := NewTable("safe-to-deploy")
	assert.Equal(t, "safe-to-deploy", tbl.DefaultCriteria)
	_, ok := tbl.Lookup("anything")
	assert.False(t, ok)
}

func TestLookupReturnsDeclaredEntry(t *testing.T) {
	tbl := NewTable("safe-to-deploy")
	tbl.Entries["foo"] = Entry{SelfCriteria: []string{"safe-to-run"}}

	e, ok := tbl.Lookup("foo")
	assert.True(t, ok)
	assert.Equal(t, []string{"safe-to-run"}, e.SelfCriteria)

	_, ok = tbl.Lookup("bar")
	assert.False(t, ok)
}
