package dds

import (
	"crypto/md5"
	"fmt"
	"path"
	"reflect"
	"sync"

	"github.com/liamstask/go-dds/cdr"
	"github.com/liamstask/go-dds/rtps"
)

// TopicNamer overrides the topic name derived from a sample type.
type TopicNamer interface {
	TopicName() string
}

// TypeNamer overrides the registered type name of a sample type.
type TypeNamer interface {
	TypeName() string
}

// TypeDescriptor is the layout of a topic type as registered with the
// transport.
type TypeDescriptor = rtps.TopicDescriptor

const (
	FlagFixedKey  = rtps.TopicFlagFixedKey
	FlagFixedSize = rtps.TopicFlagFixedSize
)

// typeInfoLen is the size of the type identifier hash.
const typeInfoLen = 14

type typeMember struct {
	Name   string
	Type   string
	Key    bool
	Offset uint32
}

type typeMapping struct {
	TypeName string
	Members  []typeMember
}

type typeEntry struct {
	topicName string
	desc      *TypeDescriptor
}

var descriptors sync.Map // reflect.Type -> *typeEntry

// describe derives the topic name and descriptor of a sample type.
func describe(t reflect.Type) (*typeEntry, error) {
	if e, ok := descriptors.Load(t); ok {
		return e.(*typeEntry), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("dds: sample type %s is not a struct", t)
	}
	prog, err := cdr.Compile(t)
	if err != nil {
		return nil, err
	}

	zero := reflect.New(t).Interface()
	entry := &typeEntry{topicName: t.Name()}
	if n, ok := zero.(TopicNamer); ok {
		entry.topicName = n.TopicName()
	}
	desc := &TypeDescriptor{
		TypeName: path.Base(t.PkgPath()) + "::" + t.Name(),
		Size:     uint32(t.Size()),
		Align:    uint32(t.Align()),
		Ops:      prog.Ops,
	}
	if n, ok := zero.(TypeNamer); ok {
		desc.TypeName = n.TypeName()
	}
	for _, k := range prog.Keys {
		desc.Keys = append(desc.Keys, rtps.KeyDescriptor{Name: k.Name, Offset: uint32(k.Offset), Index: k.Index})
	}
	if prog.FixedSize {
		desc.Flags |= FlagFixedSize
	}
	if n, bounded := keyExtent(t); len(desc.Keys) > 0 && bounded && n <= cdr.KeyHashLen {
		desc.Flags |= FlagFixedKey
	}

	mapping := typeMapping{TypeName: desc.TypeName}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("dds") == "-" {
			continue
		}
		mapping.Members = append(mapping.Members, typeMember{
			Name:   f.Name,
			Type:   f.Type.String(),
			Key:    cdr.IsKey(f),
			Offset: uint32(f.Offset),
		})
	}
	if desc.TypeMapping, err = cdr.Marshal(&mapping); err != nil {
		return nil, err
	}
	sum := md5.Sum(desc.TypeMapping)
	desc.TypeInformation = sum[:typeInfoLen]

	entry.desc = desc
	e, _ := descriptors.LoadOrStore(t, entry)
	return e.(*typeEntry), nil
}

func describeType[T any]() (*typeEntry, error) {
	return describe(reflect.TypeOf((*T)(nil)).Elem())
}

// keyExtent returns the big-endian CDR size of the key members, false when
// a key contains a string or a sequence.
func keyExtent(t reflect.Type) (int, bool) {
	n := 0
	var walk func(t reflect.Type, key bool) bool
	walk = func(t reflect.Type, key bool) bool {
		switch t.Kind() {
		case reflect.Struct:
			for i := 0; i < t.NumField(); i++ {
				f := t.Field(i)
				if !f.IsExported() || f.Tag.Get("dds") == "-" {
					continue
				}
				if k := key || cdr.IsKey(f); k || f.Type.Kind() == reflect.Struct {
					if !walk(f.Type, k) {
						return false
					}
				}
			}
			return true
		case reflect.Array:
			for i := 0; i < t.Len(); i++ {
				if !walk(t.Elem(), key) {
					return false
				}
			}
			return true
		case reflect.String, reflect.Slice:
			return !key
		}
		if !key {
			return true
		}
		sz := int(t.Size())
		if t.Kind() == reflect.Int || t.Kind() == reflect.Uint {
			sz = 8
		}
		if r := n % sz; r != 0 {
			n += sz - r
		}
		n += sz
		return true
	}
	ok := walk(t, false)
	return n, ok
}
