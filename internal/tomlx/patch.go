package tomlx

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"
)

const (
	indentStep = "    "
	maxColumn  = 88
)

// Patch renders doc as TOML text, reusing src for everything doc did not
// change. Untouched entries keep their comments, order and quoting. Edited
// values are rendered with basic strings; new keys go to the end of the
// table that owns them and new tables follow their closest relative.
// Tables that only hold other tables get no header of their own.
func Patch(src []byte, doc Table) ([]byte, error) {
	old, err := Parse(src)
	if err != nil {
		return nil, err
	}
	items, err := scan(src)
	if err != nil {
		return nil, fmt.Errorf("cannot preserve layout: %w", err)
	}
	cur, _ := Normalize(doc).(Table)
	if cur == nil {
		cur = Table{}
	}
	p := &patcher{
		src:     src,
		owners:  map[uintptr]owner{},
		covered: map[uintptr]map[string]bool{},
		arrays:  map[uintptr]map[string][]*section{},
		appends: map[*section][]string{},
	}
	p.split(items, old, cur)
	p.walk(cur, nil)
	return p.emit(), nil
}

type section struct {
	header *item
	path   []string
	array  bool
	fresh  bool
	lead   []item
	items  []item
	old    Table
	cur    Table
}

func (s *section) dropped() bool { return s.header != nil && s.cur == nil }

type owner struct {
	sec    *section
	prefix []string
}

type patcher struct {
	src      []byte
	sections []*section // emission order
	owners   map[uintptr]owner
	covered  map[uintptr]map[string]bool
	arrays   map[uintptr]map[string][]*section
	appends  map[*section][]string
}

func id(t Table) uintptr { return reflect.ValueOf(t).Pointer() }

func pathKey(parts []string) string { return strings.Join(parts, "\x00") }

// split groups items into sections and resolves each against both documents.
func (p *patcher) split(items []item, old, cur Table) {
	root := &section{old: old, cur: cur}
	p.sections = []*section{root}
	p.owners[id(cur)] = owner{sec: root}
	counters := map[string]int{}
	for i := range items {
		it := items[i]
		last := p.sections[len(p.sections)-1]
		if it.kind != headerItem && it.kind != arrayHeaderItem {
			last.items = append(last.items, it)
			continue
		}
		sec := &section{header: &items[i], path: it.key, array: it.kind == arrayHeaderItem}
		k := len(last.items)
		for k > 0 && last.items[k-1].kind == triviaItem && !last.items[k-1].blank {
			k--
		}
		sec.lead = append([]item(nil), last.items[k:]...)
		last.items = last.items[:k]
		if sec.array {
			key := pathKey(sec.path)
			counters[key]++
			for c := range counters {
				if strings.HasPrefix(c, key+"\x00") {
					delete(counters, c)
				}
			}
			if parent, ok := resolve(cur, sec.path[:len(sec.path)-1], counters); ok {
				name := sec.path[len(sec.path)-1]
				if p.arrays[id(parent)] == nil {
					p.arrays[id(parent)] = map[string][]*section{}
				}
				p.arrays[id(parent)][name] = append(p.arrays[id(parent)][name], sec)
				p.cover(parent, name)
			}
		}
		sec.old, _ = resolve(old, sec.path, counters)
		sec.cur, _ = resolve(cur, sec.path, counters)
		if sec.cur != nil {
			if _, taken := p.owners[id(sec.cur)]; !taken {
				p.owners[id(sec.cur)] = owner{sec: sec}
			}
		}
		p.sections = append(p.sections, sec)
	}
	for _, sec := range p.sections {
		if sec.cur == nil {
			continue
		}
		for _, it := range sec.items {
			if it.kind != entryItem {
				continue
			}
			parent := sec.cur
			for n, part := range it.key[:len(it.key)-1] {
				next, ok := parent[part].(Table)
				if !ok {
					parent = nil
					break
				}
				if _, taken := p.owners[id(next)]; !taken {
					p.owners[id(next)] = owner{sec: sec, prefix: it.key[:n+1]}
				}
				parent = next
			}
			if parent != nil {
				p.cover(parent, it.key[len(it.key)-1])
			}
		}
	}
}

func (p *patcher) cover(t Table, key string) {
	if p.covered[id(t)] == nil {
		p.covered[id(t)] = map[string]bool{}
	}
	p.covered[id(t)][key] = true
}

func resolve(doc Table, path []string, counters map[string]int) (Table, bool) {
	cur := doc
	for i, part := range path {
		switch x := cur[part].(type) {
		case Table:
			cur = x
		case []any:
			idx := counters[pathKey(path[:i+1])] - 1
			if idx < 0 || idx >= len(x) {
				return nil, false
			}
			t, ok := x[idx].(Table)
			if !ok {
				return nil, false
			}
			cur = t
		default:
			return nil, false
		}
	}
	return cur, true
}

func lookup(t Table, key []string) (any, bool) {
	for _, part := range key[:len(key)-1] {
		next, ok := t[part].(Table)
		if !ok {
			return nil, false
		}
		t = next
	}
	v, ok := t[key[len(key)-1]]
	return v, ok
}

// walk finds keys of t that no existing entry covers. Values come before
// sub-tables so a new table gets its own keys ahead of its children.
func (p *patcher) walk(t Table, path []string) {
	var tables []string
	for _, k := range SortedKeys(t) {
		if p.covered[id(t)][k] {
			if _, ok := p.arrays[id(t)][k]; !ok {
				continue
			}
		}
		switch v := t[k].(type) {
		case Table:
			tables = append(tables, k)
			continue
		case []any:
			if _, ok := p.arrays[id(t)][k]; ok || arrayOfTables(v) {
				tables = append(tables, k)
				continue
			}
		}
		p.addKey(t, path, k)
	}
	for _, k := range tables {
		full := append(append([]string(nil), path...), k)
		switch v := t[k].(type) {
		case Table:
			p.walk(v, full)
		case []any:
			p.walkArrayTables(t, k, v, full)
		default:
			p.addKey(t, path, k)
		}
	}
}

func (p *patcher) walkArrayTables(parent Table, key string, arr []any, full []string) {
	existing := p.arrays[id(parent)][key]
	for i, e := range arr {
		t, ok := e.(Table)
		if !ok {
			continue
		}
		if i < len(existing) && existing[i].cur != nil && id(existing[i].cur) == id(t) {
			p.walk(t, full)
			continue
		}
		// nested tables of a new element stay inline so they cannot end
		// up under a sibling's header
		p.owners[id(t)] = owner{sec: p.freshSection(full, true)}
		for _, k := range SortedKeys(t) {
			p.addKey(t, full, k)
		}
	}
}

// arrayOfTables decides whether a new array is written as [[header]]
// sections: every element is a table and at least one is not a one-liner.
func arrayOfTables(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	multi := false
	for _, e := range arr {
		t, ok := e.(Table)
		if !ok {
			return false
		}
		if len(t) > 1 {
			multi = true
		}
		for _, v := range t {
			if _, nested := v.(Table); nested {
				multi = true
			}
		}
	}
	return multi
}

func (p *patcher) addKey(t Table, path []string, k string) {
	o, ok := p.owners[id(t)]
	if !ok {
		o = owner{sec: p.freshSection(path, false)}
		p.owners[id(t)] = o
	}
	prefix := ""
	for _, part := range o.prefix {
		prefix += formatKey(part) + "."
	}
	lhs := prefix + formatKey(k) + " = "
	line := lhs + renderValue(t[k], "", len(lhs), false) + "\n"
	p.appends[o.sec] = append(p.appends[o.sec], line)
}

// freshSection adds a header after the last section sharing the longest
// path prefix, or at the end of the document.
func (p *patcher) freshSection(path []string, array bool) *section {
	sec := &section{path: append([]string(nil), path...), array: array, fresh: true}
	at, best := len(p.sections)-1, 0
	for i, s := range p.sections {
		if s.dropped() || len(s.path) == 0 {
			continue
		}
		if n := commonPrefix(s.path, path); n > 0 && n >= best {
			at, best = i, n
		}
	}
	p.sections = append(p.sections, nil)
	copy(p.sections[at+2:], p.sections[at+1:])
	p.sections[at+1] = sec
	return sec
}

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func (p *patcher) emit() []byte {
	var out bytes.Buffer
	afterFresh := false
	for _, sec := range p.sections {
		if sec.dropped() {
			continue
		}
		if sec.fresh {
			separate(&out)
			out.WriteString(headerLine(sec))
			for _, line := range p.appends[sec] {
				out.WriteString(line)
			}
			afterFresh = true
			continue
		}
		if afterFresh && sec.header != nil {
			separate(&out)
		}
		afterFresh = false
		for _, it := range sec.lead {
			out.Write(p.src[it.start:it.end])
		}
		if sec.header != nil {
			out.Write(p.src[sec.header.start:sec.header.end])
			if !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
				out.WriteByte('\n')
			}
		}
		p.emitItems(&out, sec)
	}
	text := strings.TrimLeft(out.String(), "\n")
	text = strings.TrimRight(text, " \t\r\n")
	if text == "" {
		return []byte{}
	}
	return []byte(text + "\n")
}

func (p *patcher) emitItems(out *bytes.Buffer, sec *section) {
	type chunk struct {
		text    string
		entry   bool
		comment bool
	}
	var chunks []chunk
	for _, it := range sec.items {
		raw := string(p.src[it.start:it.end])
		if it.kind == triviaItem {
			chunks = append(chunks, chunk{text: raw, comment: !it.blank})
			continue
		}
		newV, ok := lookup(sec.cur, it.key)
		if !ok {
			for len(chunks) > 0 && chunks[len(chunks)-1].comment {
				chunks = chunks[:len(chunks)-1]
			}
			continue
		}
		oldV, _ := lookup(sec.old, it.key)
		if !cmp.Equal(oldV, newV) {
			raw = p.rerender(it, oldV, newV)
		}
		chunks = append(chunks, chunk{text: raw, entry: true})
	}
	at := 0
	for i, c := range chunks {
		if c.comment {
			at = i + 1
		}
	}
	for i := len(chunks) - 1; i >= 0; i-- {
		if chunks[i].entry {
			at = i + 1
			break
		}
	}
	for i, c := range chunks {
		if i == at {
			p.writeAppends(out, sec)
		}
		out.WriteString(c.text)
		if c.entry && !strings.HasSuffix(c.text, "\n") {
			out.WriteByte('\n')
		}
	}
	if at >= len(chunks) {
		p.writeAppends(out, sec)
	}
}

func (p *patcher) writeAppends(out *bytes.Buffer, sec *section) {
	if len(p.appends[sec]) > 0 && out.Len() > 0 && !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
		out.WriteByte('\n')
	}
	for _, line := range p.appends[sec] {
		out.WriteString(line)
	}
}

func separate(out *bytes.Buffer) {
	if out.Len() == 0 {
		return
	}
	b := out.Bytes()
	if !bytes.HasSuffix(b, []byte("\n")) {
		out.WriteString("\n\n")
		return
	}
	if !bytes.HasSuffix(b, []byte("\n\n")) {
		out.WriteByte('\n')
	}
}

func headerLine(sec *section) string {
	parts := make([]string, len(sec.path))
	for i, part := range sec.path {
		parts[i] = formatKey(part)
	}
	if sec.array {
		return "[[" + strings.Join(parts, ".") + "]]\n"
	}
	return "[" + strings.Join(parts, ".") + "]\n"
}

// rerender replaces the value of an entry and keeps its key text and
// trailing comment. Array elements that survive keep their raw text.
func (p *patcher) rerender(it item, oldV, newV any) string {
	lineStart := bytes.LastIndexByte(p.src[:it.valStart], '\n') + 1
	indent := p.src[lineStart:it.start]
	if i := bytes.IndexFunc(p.src[it.start:it.valStart], func(r rune) bool { return r != ' ' && r != '\t' }); i > 0 {
		indent = p.src[lineStart : it.start+i]
	}
	column := it.valStart - lineStart
	var value string
	oldArr, oldIsArr := oldV.([]any)
	newArr, newIsArr := newV.([]any)
	if oldIsArr && newIsArr && len(it.elems) == len(oldArr) {
		value = p.renderPatchedArray(it, oldArr, newArr, string(indent), column)
	} else {
		value = renderValue(newV, string(indent), column, false)
	}
	return string(p.src[it.start:it.valStart]) + value + string(p.src[it.valEnd:it.end])
}

func (p *patcher) renderPatchedArray(it item, oldArr, newArr []any, indent string, column int) string {
	used := make([]bool, len(oldArr))
	type part struct{ text, comment string }
	parts := make([]part, 0, len(newArr))
	for _, v := range newArr {
		found := -1
		for j, o := range oldArr {
			if !used[j] && cmp.Equal(o, v) {
				found = j
				break
			}
		}
		if found < 0 {
			parts = append(parts, part{text: renderValue(v, indent+indentStep, 0, false)})
			continue
		}
		used[found] = true
		e := it.elems[found]
		parts = append(parts, part{text: string(p.src[e.start:e.end]), comment: e.comment})
	}
	if len(parts) == 0 {
		return "[]"
	}
	if !it.multiline {
		texts := make([]string, len(parts))
		for i, pt := range parts {
			texts[i] = pt.text
		}
		single := "[" + strings.Join(texts, ", ") + "]"
		if column+len(single) <= maxColumn && !strings.Contains(single, "\n") {
			return single
		}
	}
	elemIndent := indent + indentStep
	if it.multiline && len(it.elems) > 0 && it.elems[0].indent != "" {
		elemIndent = it.elems[0].indent
	}
	var b strings.Builder
	b.WriteString("[\n")
	for _, pt := range parts {
		b.WriteString(elemIndent + pt.text + ",")
		if pt.comment != "" {
			b.WriteString(" " + pt.comment)
		}
		b.WriteString("\n")
	}
	b.WriteString(indent + "]")
	return b.String()
}

func renderValue(v any, indent string, column int, inline bool) string {
	switch x := v.(type) {
	case []any:
		return renderArray(x, indent, column, inline)
	case Table:
		return renderInlineTable(x)
	default:
		return renderScalar(v)
	}
}

func renderArray(arr []any, indent string, column int, inline bool) string {
	if len(arr) == 0 {
		return "[]"
	}
	parts := make([]string, len(arr))
	for i, e := range arr {
		parts[i] = renderValue(e, indent+indentStep, 0, inline)
	}
	single := "[" + strings.Join(parts, ", ") + "]"
	if inline || column+len(single) <= maxColumn && !strings.Contains(single, "\n") {
		return single
	}
	var b strings.Builder
	b.WriteString("[\n")
	for _, part := range parts {
		b.WriteString(indent + indentStep + part + ",\n")
	}
	b.WriteString(indent + "]")
	return b.String()
}

func renderInlineTable(t Table) string {
	if len(t) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(t))
	for _, k := range SortedKeys(t) {
		parts = append(parts, formatKey(k)+" = "+renderValue(t[k], "", 0, true))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func renderScalar(v any) string {
	switch x := v.(type) {
	case string:
		return quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	}
	data, err := toml.Marshal(map[string]any{"v": v})
	if err == nil {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "v = "); ok {
			return rest
		}
	}
	return quote(fmt.Sprint(v))
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

var bareKeyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func formatKey(k string) string {
	if bareKeyRe.MatchString(k) {
		return k
	}
	return quote(k)
}
