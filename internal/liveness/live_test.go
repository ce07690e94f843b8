package liveness

import (
	"testing"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/closure"
)

func tag(name string) closure.CtorTag {
	return closure.CtorTag{Kind: closure.TagConstruct, Name: name}
}

func TestJoinIdentities(t *testing.T) {
	top := Top()
	bot := Bot()
	f := Func(bot)

	if !Equal(Join(bot, f), f) {
		t.Errorf("Join(Bot, x) != x")
	}
	if !Equal(Join(f, bot), f) {
		t.Errorf("Join(x, Bot) != x")
	}
	if !Equal(Join(top, f), top) {
		t.Errorf("Join(Top, x) != Top")
	}
}

func TestJoinCtorMergesFields(t *testing.T) {
	a := Ctor(map[closure.CtorTag][]Live{tag("Cons"): {Bot(), Top()}})
	b := Ctor(map[closure.CtorTag][]Live{tag("Cons"): {Top(), Bot()}})
	got := Join(a, b)
	want := Ctor(map[closure.CtorTag][]Live{tag("Cons"): {Top(), Top()}})
	if !Equal(got, want) {
		t.Errorf("Join(a, b) = %v, want %v", got, want)
	}
}

func TestJoinMismatchedShapesFallsBackToTop(t *testing.T) {
	f := Func(Bot())
	c := Ctor(map[closure.CtorTag][]Live{tag("X"): {Bot()}})
	got := Join(f, c)
	if !Equal(got, Top()) {
		t.Errorf("Join(Func, Ctor) = %v, want Top", got)
	}
}

func TestMeetIdentities(t *testing.T) {
	top := Top()
	bot := Bot()
	f := Func(top)

	if !Equal(Meet(bot, f), bot) {
		t.Errorf("Meet(Bot, x) != Bot")
	}
	if !Equal(Meet(top, f), f) {
		t.Errorf("Meet(Top, x) != x")
	}
}

func TestFieldAndFromField(t *testing.T) {
	want := Top()
	carrier := FromField(tag("Pair"), 1, want)
	if got := Field(carrier, tag("Pair"), 1); !Equal(got, want) {
		t.Errorf("Field(FromField(tag, 1, l), tag, 1) = %v, want %v", got, want)
	}
	if got := Field(carrier, tag("Pair"), 0); !Equal(got, Bot()) {
		t.Errorf("Field for an unset slot = %v, want Bot", got)
	}
	if got := Field(Top(), tag("Pair"), 0); !Equal(got, Top()) {
		t.Errorf("Field(Top, ...) = %v, want Top", got)
	}
	if got := Field(Bot(), tag("Pair"), 0); !Equal(got, Bot()) {
		t.Errorf("Field(Bot, ...) = %v, want Bot", got)
	}
}

func TestBody(t *testing.T) {
	if got := Body(Func(Top())); !Equal(got, Top()) {
		t.Errorf("Body(Func(Top)) = %v, want Top", got)
	}
	if got := Body(Top()); !Equal(got, Top()) {
		t.Errorf("Body(Top) = %v, want Top", got)
	}
	if got := Body(Bot()); !Equal(got, Bot()) {
		t.Errorf("Body(Bot) = %v, want Bot", got)
	}
}

func TestIfNotBot(t *testing.T) {
	if got := IfNotBot(Bot(), Top()); !Equal(got, Bot()) {
		t.Errorf("IfNotBot(Bot, Top) = %v, want Bot", got)
	}
	if got := IfNotBot(Top(), Top()); !Equal(got, Top()) {
		t.Errorf("IfNotBot(Top, Top) = %v, want Top", got)
	}
}

func TestControlledByPat(t *testing.T) {
	tests := []struct {
		name string
		pat  artifact.Pattern
		want Live
	}{
		{"wildcard", &artifact.WildcardPattern{}, Bot()},
		{"var", &artifact.VarPattern{}, Bot()},
		{"const", &artifact.ConstPattern{}, Top()},
		{"array", &artifact.ArrayPattern{}, Top()},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ControlledByPat(test.pat); !Equal(got, test.want) {
				t.Errorf("ControlledByPat(%s) = %v, want %v", test.name, got, test.want)
			}
		})
	}
}

func TestStringDoesNotPanic(t *testing.T) {
	vals := []Live{Bot(), Top(), Func(Bot()), Ctor(map[closure.CtorTag][]Live{tag("X"): {Top()}})}
	for _, v := range vals {
		_ = v.String()
	}
}
