package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const noteRules = `rules:
  - name: Notes
    match:
      formType: Book
      fields: {bookType: 255}
    assign:
      iconLabel: book_note
      customData: {kind: note}
  - name: Books
    match: {formType: Book}
`

const noteForms = `forms:
  - id: 0x1234
    type: Book
    editorId: NoteToSelf
    model: Clutter\Books\Note01.nif
  - id: 0x2345
    type: Book
    editorId: BookLore
    model: Clutter\Books\BasicBook01.nif
`

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func rulesDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		writeTempFile(t, dir, name, contents)
	}
	return dir
}

func TestRunCheckSuccess(t *testing.T) {
	dir := rulesDir(t, map[string]string{"books.yaml": noteRules})
	var stdout, stderr bytes.Buffer
	if err := runCheck([]string{"--rules", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runCheck returned error: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "Configuration OK (2 rules)" {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
	if strings.TrimSpace(stderr.String()) != "" {
		t.Fatalf("expected no stderr, got %q", stderr.String())
	}
}

func TestRunCheckFailure(t *testing.T) {
	dir := rulesDir(t, map[string]string{
		"10_bad.yaml": `rules:
  - name: Typo
    assign: {iconLabl: x}
  - name: Color
    assign: {iconColor: "#nothex"}
  - name: Plain
  - name: Plain
`,
		"20_broken.json": `{"rules": [`,
	})
	var stdout, stderr bytes.Buffer
	err := runCheck([]string{"--rules", dir}, &stdout, &stderr)
	if err == nil {
		t.Fatalf("expected error from runCheck")
	}
	if strings.TrimSpace(stdout.String()) != "" {
		t.Fatalf("expected no stdout, got %q", stdout.String())
	}
	output := stderr.String()
	for _, want := range []string{
		"Configuration has 4 issue(s):",
		`10_bad.yaml: rules[0]: line 3: unknown assign key "iconLabl" (did you mean "iconLabel"?)`,
		`10_bad.yaml: rules[1]: assign: line 5: iconColor: invalid color "#nothex"`,
		`10_bad.yaml: rules[3]: duplicate rule name "Plain"`,
		"20_broken.json: invalid JSON",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("missing %q in output:\n%s", want, output)
		}
	}
}

func TestRunCheckReportsMissingIconSources(t *testing.T) {
	dir := rulesDir(t, map[string]string{"icons.yaml": `rules:
  - name: Missing
    match: {formType: Book}
    assign: {iconSource: missing.swf, iconLabel: book}
  - name: Present
    match: {formType: Misc}
    assign: {iconSource: present.swf}
`})
	icons := t.TempDir()
	if err := os.MkdirAll(filepath.Join(icons, "interface"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTempFile(t, filepath.Join(icons, "interface"), "present.swf", "FWS")

	var stdout, stderr bytes.Buffer
	if err := runCheck([]string{"--rules", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("expected check without --icons to pass: %v (%s)", err, stderr.String())
	}

	stdout.Reset()
	err := runCheck([]string{"--rules", dir, "--icons", icons}, &stdout, &stderr)
	if err == nil {
		t.Fatalf("expected missing icon source to fail the check")
	}
	output := stderr.String()
	for _, want := range []string{
		"Configuration has 1 issue(s):",
		`- icons.yaml: rules[0]: icon source "missing.swf" not found`,
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("missing %q in output:\n%s", want, output)
		}
	}
}

func TestRunCheckRequiresRules(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := runCheck(nil, &stdout, &stderr); err == nil {
		t.Fatalf("expected error without --rules")
	}
}

func TestRunProcessWithYAMLForms(t *testing.T) {
	dir := rulesDir(t, map[string]string{"books.yaml": noteRules})
	data := t.TempDir()
	forms := writeTempFile(t, data, "forms.yaml", noteForms)
	records := writeTempFile(t, data, "records.json", `[
  // a note and a plain book
  {"formType": 27, "formId": 4660, "text": "Note to Self"},
  {"formType": 27, "formId": 9029, "text": "The Lusty Argonian Maid"}
]`)

	var stdout, stderr bytes.Buffer
	err := run([]string{"process", "--rules", dir, "--records", records, "--forms", forms, "--stats"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("process returned error: %v (stderr %q)", err, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
	wantNote := `{ formType: 27, formId: 4660, text: "Note to Self", bookType: 255, subType: 1, subTypeDisplay: <wstring>, customData: { kind: "note", }, iconLabel: "book_note", }`
	if lines[0] != wantNote {
		t.Fatalf("unexpected note output:\n got %s\nwant %s", lines[0], wantNote)
	}
	wantBook := `{ formType: 27, formId: 9029, text: "The Lusty Argonian Maid", }`
	if lines[1] != wantBook {
		t.Fatalf("unexpected book output:\n got %s\nwant %s", lines[1], wantBook)
	}
	if lines[2] != "matched=2 applied=1 iconUpdates=1 misses=0" {
		t.Fatalf("unexpected stats line: %q", lines[2])
	}
}

func TestImportFormsThenProcessFromSQLite(t *testing.T) {
	dir := rulesDir(t, map[string]string{"books.yaml": noteRules})
	data := t.TempDir()
	forms := writeTempFile(t, data, "forms.yaml", noteForms)
	db := filepath.Join(data, "forms.db")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"import-forms", "--forms", forms, "--db", db}, &stdout, &stderr); err != nil {
		t.Fatalf("import-forms returned error: %v (stderr %q)", err, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != "Imported 2 form(s); store holds 2" {
		t.Fatalf("unexpected import output: %q", stdout.String())
	}

	list := writeTempFile(t, data, "list.json", `{"_entryList": [{"formType": 27, "formId": 4660}, "header"]}`)
	stdout.Reset()
	if err := run([]string{"process", "--rules", dir, "--records", list, "--forms", db, "--json"}, &stdout, &stderr); err != nil {
		t.Fatalf("process returned error: %v (stderr %q)", err, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	want := `{"formType":27,"formId":4660,"bookType":255,"subType":1,"subTypeDisplay":"$Note","customData":{"kind":"note"},"iconLabel":"book_note"}`
	if len(lines) != 2 || lines[0] != want || lines[1] != `"header"` {
		t.Fatalf("unexpected output:\n%s", stdout.String())
	}
}

func TestRunProcessMissingStore(t *testing.T) {
	dir := rulesDir(t, map[string]string{"books.yaml": noteRules})
	records := writeTempFile(t, t.TempDir(), "records.json", `[]`)
	var stdout, stderr bytes.Buffer
	err := run([]string{"process", "--rules", dir, "--records", records, "--forms", filepath.Join(dir, "missing.db")}, &stdout, &stderr)
	if err == nil {
		t.Fatalf("expected error for a missing form store")
	}
}

func TestRunExplain(t *testing.T) {
	dir := rulesDir(t, map[string]string{"books.yaml": noteRules})
	data := t.TempDir()
	forms := writeTempFile(t, data, "forms.yaml", noteForms)
	record := writeTempFile(t, data, "record.json", `{"formType": 27, "formId": 9029}`)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"explain", "--rules", dir, "--record", record, "--forms", forms}, &stdout, &stderr); err != nil {
		t.Fatalf("explain returned error: %v", err)
	}
	output := stdout.String()
	for _, want := range []string{
		"form 00002345 BookLore (Book)",
		"rule Notes (books.yaml: rules[0])",
		"    fields.bookType => false",
		"=> matched Books (no properties, entry left as is)",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("missing %q in output:\n%s", want, output)
		}
	}
}

func TestRunUnknownSubcommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"proces"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), `did you mean "process"`) {
		t.Fatalf("expected suggestion, got %v", err)
	}
}
