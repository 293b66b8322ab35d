package compile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minios-linux/contentkit/catalog"
)

const (
	moMagic      = 0x950412de
	moHeaderSize = 28
)

type moString struct {
	orig, trans string
}

// WriteMO writes the table as a little-endian GNU MO file with the header
// entry and keys in byte order. Missing plural forms are filled with the
// source strings so every reader sees complete entries.
func (t *Table) WriteMO(w io.Writer) error {
	strs := make([]moString, 0, len(t.msgs)+1)
	strs = append(strs, moString{orig: "", trans: t.headerText()})
	for _, m := range t.msgs {
		strs = append(strs, moString{orig: m.origKey(), trans: m.transValue(t.nplurals)})
	}
	sort.Slice(strs, func(i, j int) bool { return strs[i].orig < strs[j].orig })

	n := uint32(len(strs))
	origTable := uint32(moHeaderSize)
	transTable := origTable + 8*n
	dataStart := transTable + 8*n

	bw := bufio.NewWriter(w)
	write := func(v uint32) error {
		return binary.Write(bw, binary.LittleEndian, v)
	}
	for _, v := range []uint32{moMagic, 0, n, origTable, transTable, 0, dataStart} {
		if err := write(v); err != nil {
			return err
		}
	}

	offset := dataStart
	for _, s := range strs {
		if err := write(uint32(len(s.orig))); err != nil {
			return err
		}
		if err := write(offset); err != nil {
			return err
		}
		offset += uint32(len(s.orig)) + 1
	}
	for _, s := range strs {
		if err := write(uint32(len(s.trans))); err != nil {
			return err
		}
		if err := write(offset); err != nil {
			return err
		}
		offset += uint32(len(s.trans)) + 1
	}
	for _, s := range strs {
		if _, err := bw.WriteString(s.orig + "\x00"); err != nil {
			return err
		}
	}
	for _, s := range strs {
		if _, err := bw.WriteString(s.trans + "\x00"); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing MO data: %w", err)
	}
	return nil
}

func (t *Table) headerText() string {
	if t.header == nil {
		return ""
	}
	var sb strings.Builder
	for _, f := range t.header.Fields {
		sb.WriteString(f.Name + ": " + f.Value + "\n")
	}
	return sb.String()
}

func (m *Message) origKey() string {
	key := catalog.Key(m.Context, m.ID)
	if m.Plural != "" {
		key += "\x00" + m.Plural
	}
	return key
}

func (m *Message) transValue(nplurals int) string {
	if m.Plural == "" {
		return m.Forms[0]
	}
	n := max(nplurals, len(m.Forms))
	forms := make([]string, n)
	for i := range forms {
		switch {
		case i < len(m.Forms) && m.Forms[i] != "":
			forms[i] = m.Forms[i]
		case i == 0:
			forms[i] = m.ID
		default:
			forms[i] = m.Plural
		}
	}
	return strings.Join(forms, "\x00")
}
