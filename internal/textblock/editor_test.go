package textblock

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellBlock(url string) Block {
	return Block{
		Begin: "# BEGIN Test Proxy Settings",
		End:   "# END Test Proxy Settings",
		Body: []string{
			`export HTTP_PROXY="` + url + `"`,
			`export ALL_PROXY="` + url + `"`,
		},
		Continues: func(line string) bool {
			l := strings.TrimSpace(line)
			return strings.HasPrefix(l, "export ") || strings.HasPrefix(l, "#")
		},
	}
}

const rc = "# user rc\nalias ll='ls -l'\nexport PATH=$PATH:/opt/bin\n"

func TestSpliceAppendsAndIsIdempotent(t *testing.T) {
	b := shellBlock("http://1.2.3.4:8080")

	once := Splice(rc, b)
	assert.True(t, strings.HasPrefix(once, rc), "unrelated content must be kept as a prefix")
	assert.Equal(t, rc+strings.Join(b.Lines(), "\n")+"\n", once)

	twice := Splice(once, b)
	assert.Equal(t, once, twice)
}

func TestSpliceReplacesInPlace(t *testing.T) {
	before := "line1\n"
	after := "line2\nline3\n"
	old := shellBlock("http://old:1")
	content := before + strings.Join(old.Lines(), "\n") + "\n" + after

	updated := Splice(content, shellBlock("socks5://new:2"))

	assert.Equal(t, before+strings.Join(shellBlock("socks5://new:2").Lines(), "\n")+"\n"+after, updated)
	assert.NotContains(t, updated, "http://old:1")
}

func TestSpliceLegacyBlockWithoutEnd(t *testing.T) {
	// A block written without an END line stops at the first foreign line.
	content := "a\n# BEGIN Test Proxy Settings\nexport HTTP_PROXY=\"x\"\n# trailing comment\nalias k=kubectl\n"
	updated := Splice(content, shellBlock("http://h:1"))

	assert.Equal(t, "a\n"+strings.Join(shellBlock("http://h:1").Lines(), "\n")+"\nalias k=kubectl\n", updated)
}

func TestSpliceCollapsesDuplicates(t *testing.T) {
	b := shellBlock("http://h:1")
	dup := strings.Join(b.Lines(), "\n") + "\n"
	content := "x\n" + dup + "y\n" + dup

	updated := Splice(content, b)
	assert.Equal(t, "x\n"+dup+"y\n", updated)
}

func TestSpliceNoTrailingNewline(t *testing.T) {
	b := shellBlock("http://h:1")
	updated := Splice("no newline", b)
	assert.Equal(t, "no newline\n"+strings.Join(b.Lines(), "\n")+"\n", updated)

	assert.Equal(t, strings.Join(b.Lines(), "\n")+"\n", Splice("", b))
}

func TestExcise(t *testing.T) {
	b := shellBlock("http://h:1")

	out, found := Excise(rc, b)
	assert.False(t, found)
	assert.Equal(t, rc, out)

	withBlock := Splice(rc, b)
	out, found = Excise(withBlock, b)
	assert.True(t, found)
	assert.Equal(t, rc, out)

	middle := "a\n" + strings.Join(b.Lines(), "\n") + "\nb\n"
	out, found = Excise(middle, b)
	assert.True(t, found)
	assert.Equal(t, "a\nb\n", out)

	only := strings.Join(b.Lines(), "\n") + "\n"
	out, found = Excise(only, b)
	assert.True(t, found)
	assert.Equal(t, "", out)
}

func TestExtract(t *testing.T) {
	b := shellBlock("http://h:1")
	assert.Nil(t, Extract(rc, b))
	assert.Equal(t, b.Lines(), Extract(Splice(rc, b), b))
}

func TestApplyAndRemoveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".bashrc")
	require.NoError(t, os.WriteFile(path, []byte(rc), 0o600))
	b := shellBlock("socks5://10.0.0.5:1080")

	outcome, err := Apply(path, b)
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)

	outcome, err = Apply(path, b)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, outcome)

	outcome, err = Apply(path, shellBlock("http://1.1.1.1:3128"))
	require.NoError(t, err)
	assert.Equal(t, Replaced, outcome)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	lines, err := Read(path, b)
	require.NoError(t, err)
	assert.Contains(t, lines, `export ALL_PROXY="http://1.1.1.1:3128"`)

	outcome, err = Remove(path, b)
	require.NoError(t, err)
	assert.Equal(t, Removed, outcome)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rc, string(data))

	outcome, err = Remove(path, b)
	require.NoError(t, err)
	assert.Equal(t, Absent, outcome)
}

func TestRemoveWithoutBlockLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".zshrc")
	require.NoError(t, os.WriteFile(path, []byte(rc), 0o644))
	before, err := os.Stat(path)
	require.NoError(t, err)

	outcome, err := Remove(path, shellBlock("http://h:1"))
	require.NoError(t, err)
	assert.Equal(t, Absent, outcome)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rc, string(data))
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestMissingFileIsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")

	outcome, err := Apply(path, shellBlock("http://h:1"))
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Apply must not create files")

	outcome, err = Remove(path, shellBlock("http://h:1"))
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
}
