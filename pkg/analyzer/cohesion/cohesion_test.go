package cohesion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountJava = `package demo;

import java.util.List;

public class Account extends Base implements Auditable {
    private int balance;
    public static final String KIND = "acct";
    private List<Entry> entries;

    public Account(int start) {
        this.balance = start;
        init();
    }

    public int deposit(int amount) {
        if (amount > 0) {
            balance += amount;
            log(amount);
        }
        return balance;
    }

    private void audit() {
        for (Entry e : entries) {
            e.check();
        }
    }

    public static Account empty() {
        return new Account(0);
    }
}
`

const stackPython = `class Stack(Base):
    limit = 10

    def __init__(self):
        self.items = []
        self._size = 0

    def push(self, item):
        if len(self.items) < self.limit and item is not None:
            self.items.append(item)
            self._size += 1

    def _peek(self):
        return self.items[-1]

    @staticmethod
    def create():
        return Stack()
`

const orderCSharp = `namespace Shop {
    public class Order : Entity, IValidated {
        private List<Line> lines;
        public static int Count;

        public decimal Total() { return 0; }

        public bool Validate() { return lines.Count > 0 && Total() > 0; }
    }
}
`

func compute(t *testing.T, path, src string, tree *InheritanceTree) Result {
	t.Helper()
	a := New()
	t.Cleanup(a.Close)
	res, err := a.Compute(context.Background(), path, []byte(src), tree)
	require.NoError(t, err)
	return res
}

func TestCompute_Java(t *testing.T) {
	res := compute(t, "src/demo/Account.java", accountJava, nil)
	m := res.Metrics

	assert.Equal(t, "Account", res.Class)
	assert.Equal(t, "java", res.Language)
	assert.Equal(t, 3, m.NOM)
	assert.Equal(t, 2, m.NOPM)
	assert.Equal(t, 1, m.NOSM)
	assert.Equal(t, 3, m.NOF)
	assert.Equal(t, 1, m.NOSF)
	assert.Equal(t, 1, m.NOPF)
	// log and check; constructor calls and object creation are not counted.
	assert.Equal(t, 5, m.RFC)
	assert.Equal(t, 5, m.WMC)
	// Base, Auditable, List, Entry.
	assert.Equal(t, 4, m.CBO)
	assert.Equal(t, 26, m.ELOC)
	// balance and entries are each used by one of three methods.
	assert.InDelta(t, 7.0/6.0, m.HsLCOM, 1e-9)

	assert.Zero(t, m.DIT)
	assert.Zero(t, m.NOC)
	assert.Equal(t, []string{"C3", "ComRead", "DIT", "NOC", "NOSI", "SEXP"}, res.Unsupported)
}

func TestCompute_Python(t *testing.T) {
	res := compute(t, "pkg/stack.py", stackPython, nil)
	m := res.Metrics

	assert.Equal(t, "Stack", res.Class)
	assert.Equal(t, 3, m.NOM)
	assert.Equal(t, 2, m.NOPM)
	assert.Equal(t, 1, m.NOSM)
	assert.Equal(t, 3, m.NOF)
	assert.Equal(t, 1, m.NOSF)
	assert.Equal(t, 2, m.NOPF)
	assert.Equal(t, 6, m.RFC)
	assert.Equal(t, 5, m.WMC)
	assert.Equal(t, 1, m.CBO)
	assert.InDelta(t, 5.0/6.0, m.HsLCOM, 1e-9)
}

func TestCompute_CSharp(t *testing.T) {
	res := compute(t, "Order.cs", orderCSharp, nil)
	m := res.Metrics

	assert.Equal(t, "Order", res.Class)
	assert.Equal(t, 2, m.NOM)
	assert.Equal(t, 2, m.NOPM)
	assert.Equal(t, 2, m.NOF)
	assert.Equal(t, 1, m.NOSF)
	assert.Equal(t, 1, m.NOPF)
	assert.Equal(t, 3, m.RFC)
	assert.Equal(t, 3, m.WMC)
	assert.Equal(t, 4, m.CBO)
}

func TestCompute_RFCExcludesConstructors(t *testing.T) {
	src := `public class Loader {
    public Loader() {
        init();
        load();
    }

    public int size() {
        return 0;
    }
}
`
	m := compute(t, "Loader.java", src, nil).Metrics

	assert.Equal(t, 1, m.NOM)
	assert.Equal(t, 1, m.RFC)
	assert.Equal(t, 1, m.WMC)
}

func TestCompute_PrimaryClassMatchesFileName(t *testing.T) {
	src := "class Helper {}\nclass Widget { void a() {} void b() {} }\n"

	res := compute(t, "Widget.java", src, nil)
	assert.Equal(t, "Widget", res.Class)
	assert.Equal(t, 2, res.Metrics.NOM)

	res = compute(t, "Other.java", src, nil)
	assert.Equal(t, "Helper", res.Class)
	assert.Zero(t, res.Metrics.NOM)
}

func TestCompute_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		src     string
		wantErr bool
	}{
		{"empty text", "A.java", "", false},
		{"whitespace", "A.java", "  \n\t\n", false},
		{"unsupported language", "main.go", "package main\n", false},
		{"syntax error", "A.java", "public class {", true},
		{"no class", "util.py", "x = 1\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			defer a.Close()

			res, err := a.Compute(context.Background(), tt.path, []byte(tt.src), nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnparseable)
			} else {
				assert.NoError(t, err)
			}
			assert.Zero(t, res.Metrics)
			assert.Len(t, res.Unsupported, 17)
			assert.Contains(t, res.Unsupported, "HsLCOM")
		})
	}
}

func TestCompute_MaxFileSize(t *testing.T) {
	a := New(WithMaxFileSize(10))
	defer a.Close()

	res, err := a.Compute(context.Background(), "Account.java", []byte(accountJava), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Metrics)
}

func TestInheritanceTree(t *testing.T) {
	tree := NewInheritanceTree()
	tree.Add("Base", "Root")
	tree.Add("Account", "Base")
	tree.Add("Savings", "Account")
	tree.Add("Checking", "Account", "Account")

	assert.Equal(t, 1, tree.DIT("Root"))
	assert.Equal(t, 3, tree.DIT("Account"))
	assert.Equal(t, 4, tree.DIT("Savings"))
	assert.Equal(t, 1, tree.DIT("Unknown"))
	assert.Equal(t, 2, tree.NOC("Account"))
	assert.Zero(t, tree.NOC("Savings"))
}

func TestInheritanceTree_Cycle(t *testing.T) {
	tree := NewInheritanceTree()
	tree.Add("A", "B")
	tree.Add("B", "A")
	tree.Add("C", "C")

	assert.Equal(t, 3, tree.DIT("A"))
	assert.Equal(t, 1, tree.DIT("C"))
	assert.Zero(t, tree.NOC("C"))
}

func TestBuildInheritance(t *testing.T) {
	files := map[string]string{
		"Base.java":      "public class Base {}\n",
		"Account.java":   accountJava,
		"Savings.java":   "public class Savings extends Account {}\n",
		"Checking.java":  "public class Checking extends demo.Account implements Auditable {}\n",
		"Broken.java":    "public class {",
		"README.md":      "# docs\n",
		"missing.py":     "",
		"Auditable.java": "public interface Auditable {}\n",
	}
	paths := []string{"Base.java", "Account.java", "Savings.java", "Checking.java", "Broken.java", "README.md", "missing.py", "Auditable.java"}
	read := func(p string) ([]byte, error) {
		if p == "missing.py" {
			return nil, errors.New("not found")
		}
		return []byte(files[p]), nil
	}

	a := New()
	defer a.Close()
	tree, err := a.BuildInheritance(context.Background(), paths, read)
	require.NoError(t, err)

	assert.Equal(t, 2, tree.DIT("Account"))
	assert.Equal(t, 3, tree.DIT("Checking"))
	assert.Equal(t, 2, tree.NOC("Account"))
	assert.Zero(t, tree.NOC("Auditable"), "interfaces are not superclasses")

	res, err := a.Compute(context.Background(), "Account.java", []byte(accountJava), tree)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Metrics.DIT)
	assert.Equal(t, 2, res.Metrics.NOC)
	assert.Equal(t, []string{"C3", "ComRead", "NOSI", "SEXP"}, res.Unsupported)
}

func TestBuildInheritance_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New()
	defer a.Close()
	_, err := a.BuildInheritance(ctx, []string{"A.java"}, func(string) ([]byte, error) {
		return nil, fmt.Errorf("unexpected read")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateNodeComplexity_NilNode(t *testing.T) {
	assert.Equal(t, 1, calculateNodeComplexity(nil))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("A.java"))
	assert.True(t, Supported("a.py"))
	assert.False(t, Supported("a.go"))
}
