package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Matches(t *testing.T) {
	rule := Rule{
		Trigger: Key{Sym: 'j', Mods: ControlMask},
		Action:  RunCommand("true"),
	}

	tests := []struct {
		name     string
		observed Key
		want     bool
	}{
		{"exact", Key{Sym: 'j', Mods: ControlMask}, true},
		{"caps lock engaged", Key{Sym: 'j', Mods: ControlMask | LockMask}, true},
		{"num and scroll lock", Key{Sym: 'j', Mods: ControlMask | Mod2Mask | Mod3Mask}, true},
		{"extra shift is not a subset match", Key{Sym: 'j', Mods: ControlMask | ShiftMask}, false},
		{"missing control", Key{Sym: 'j'}, false},
		{"other key", Key{Sym: 'k', Mods: ControlMask}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Matches(tt.observed))
		})
	}
}

func TestPolicy_Triggers_DistinctInOrder(t *testing.T) {
	p := &Policy{Groups: []Group{
		{
			Matches: []Match{ClassIs("Firefox")},
			Rules: []Rule{
				{Trigger: Key{Sym: 'n', Mods: ControlMask}, Action: ForwardKey(Key{Sym: 0xff54})},
				{Trigger: Key{Sym: 'p', Mods: ControlMask}, Action: ForwardKey(Key{Sym: 0xff52})},
			},
		},
		{
			Matches: []Match{AnyWindow()},
			Rules: []Rule{
				{Trigger: Key{Sym: 'n', Mods: ControlMask}, Action: Placeholder(DirectiveIgnore)},
				{Trigger: Key{Sym: 'n'}, Action: Placeholder(DirectiveIgnore)},
			},
		},
	}}

	assert.Equal(t, []Key{
		{Sym: 'n', Mods: ControlMask},
		{Sym: 'p', Mods: ControlMask},
		{Sym: 'n'},
	}, p.Triggers())
}

func TestPolicy_Triggers_Empty(t *testing.T) {
	p := &Policy{Groups: []Group{{Matches: []Match{AnyWindow()}}}}
	assert.Empty(t, p.Triggers())
}

func TestPolicy_Validate(t *testing.T) {
	valid := Rule{Trigger: Key{Sym: 'a'}, Action: RunCommand("xterm")}

	tests := []struct {
		name    string
		policy  Policy
		wantErr string
	}{
		{
			name:   "empty policy",
			policy: Policy{},
		},
		{
			name:   "empty group",
			policy: Policy{Groups: []Group{{}}},
		},
		{
			name:    "class without name",
			policy:  Policy{Groups: []Group{{Matches: []Match{{Kind: MatchClass}}}}},
			wantErr: "group 1 match 1",
		},
		{
			name:    "unknown match kind",
			policy:  Policy{Groups: []Group{{Matches: []Match{{Kind: 42}}}}},
			wantErr: "unknown match kind",
		},
		{
			name: "exec without command",
			policy: Policy{Groups: []Group{{Rules: []Rule{
				valid,
				{Trigger: Key{Sym: 'b'}, Action: Action{Kind: ActionRunCommand}},
			}}}},
			wantErr: "group 1 rule 2",
		},
		{
			name: "send with foreign payload",
			policy: Policy{Groups: []Group{{Rules: []Rule{
				{Trigger: Key{Sym: 'b'}, Action: Action{Kind: ActionForwardKey, Key: Key{Sym: 'c'}, Command: "x"}},
			}}}},
			wantErr: "foreign payload",
		},
		{
			name: "unknown directive",
			policy: Policy{Groups: []Group{{Rules: []Rule{
				{Trigger: Key{Sym: 'b'}, Action: Placeholder(99)},
			}}}},
			wantErr: "unknown directive",
		},
		{
			name: "lock modifier in trigger",
			policy: Policy{Groups: []Group{{Rules: []Rule{
				{Trigger: Key{Sym: 'b', Mods: LockMask}, Action: RunCommand("x")},
			}}}},
			wantErr: "lock modifiers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAction_StringPanicsOnInvalidKind(t *testing.T) {
	assert.Panics(t, func() { _ = Action{Kind: 99}.String() })
}

func TestForwardKey_NormalizesPayload(t *testing.T) {
	a := ForwardKey(Key{Sym: 'x', Mods: ShiftMask | LockMask})
	assert.Equal(t, Key{Sym: 'x', Mods: ShiftMask}, a.Key)
	require.NoError(t, a.Validate())
}

func TestParseDirective(t *testing.T) {
	d, ok := ParseDirective("ignore")
	require.True(t, ok)
	assert.Equal(t, DirectiveIgnore, d)
	assert.True(t, d.Implemented())

	d, ok = ParseDirective("toggle")
	require.True(t, ok)
	assert.False(t, d.Implemented())

	_, ok = ParseDirective("explode")
	assert.False(t, ok)
}
