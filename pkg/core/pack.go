package core

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	"github.com/darianrosebrook/agent-agency/pkg/core/status"
	"github.com/darianrosebrook/agent-agency/pkg/index"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
)

// Pack file layout:
//
//	magic
//	8-byte big-endian header length
//	yaml header listing (digest, offset, length) per object,
//	  offsets relative to the end of the header
//	object bodies back to back
//
// Objects are stored exactly as their loose bodies, so digests verify the
// same way loose or packed.
var packMagic = []byte("rvpack1\n")

type packHeader struct {
	Version uint64          `yaml:"version"`
	Objects []packHeaderRec `yaml:"objects"`
}

type packHeaderRec struct {
	Digest string `yaml:"digest"`
	Offset int64  `yaml:"offset"`
	Length int64  `yaml:"length"`
}

// buildPack serializes objects into a pack body plus location records with
// offsets made absolute within the pack file.
func buildPack(objects []packObject) ([]byte, map[cafs.Key]index.Location, error) {
	hdr := packHeader{Version: model.CurrentStoreVersion}
	var rel int64
	for _, obj := range objects {
		hdr.Objects = append(hdr.Objects, packHeaderRec{
			Digest: obj.key.String(),
			Offset: rel,
			Length: int64(len(obj.data)),
		})
		rel += int64(len(obj.data))
	}
	hdrBytes, err := yaml.Marshal(hdr)
	if err != nil {
		return nil, nil, err
	}

	base := int64(len(packMagic)) + 8 + int64(len(hdrBytes))
	var buf bytes.Buffer
	buf.Grow(int(base + rel))
	buf.Write(packMagic)
	var lenBytes [8]byte
	binary.BigEndian.PutUint64(lenBytes[:], uint64(len(hdrBytes)))
	buf.Write(lenBytes[:])
	buf.Write(hdrBytes)

	locations := make(map[cafs.Key]index.Location, len(objects))
	for i, obj := range objects {
		buf.Write(obj.data)
		locations[obj.key] = index.Location{
			Offset: base + hdr.Objects[i].Offset,
			Length: hdr.Objects[i].Length,
		}
	}
	return buf.Bytes(), locations, nil
}

type packObject struct {
	key  cafs.Key
	data []byte
}

// readPackLocations parses a pack header and returns absolute locations
// for every object the pack holds.
func readPackLocations(ctx context.Context, backend storage.Store, pth string) (map[cafs.Key]index.Location, error) {
	rdr, err := backend.Get(ctx, pth)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rdr.Close()
	}()

	magic := make([]byte, len(packMagic))
	if _, err = io.ReadFull(rdr, magic); err != nil || !bytes.Equal(magic, packMagic) {
		return nil, status.ErrFormat.WrapMessage("bad pack magic: " + pth)
	}
	var lenBytes [8]byte
	if _, err = io.ReadFull(rdr, lenBytes[:]); err != nil {
		return nil, status.ErrFormat.WrapMessage("truncated pack header: " + pth)
	}
	hdrLen := binary.BigEndian.Uint64(lenBytes[:])
	if hdrLen > 1<<28 {
		return nil, status.ErrFormat.WrapMessage("oversized pack header: " + pth)
	}
	hdrBytes := make([]byte, hdrLen)
	if _, err = io.ReadFull(rdr, hdrBytes); err != nil {
		return nil, status.ErrFormat.WrapMessage("truncated pack header: " + pth)
	}
	var hdr packHeader
	if err = yaml.Unmarshal(hdrBytes, &hdr); err != nil {
		return nil, status.ErrFormat.Wrap(err)
	}

	base := int64(len(packMagic)) + 8 + int64(hdrLen)
	locations := make(map[cafs.Key]index.Location, len(hdr.Objects))
	for _, rec := range hdr.Objects {
		key, e := cafs.KeyFromString(rec.Digest)
		if e != nil {
			return nil, status.ErrFormat.WrapMessage("bad digest in pack header: " + rec.Digest)
		}
		locations[key] = index.Location{
			Pack:   pth,
			Offset: base + rec.Offset,
			Length: rec.Length,
		}
	}
	return locations, nil
}

// applyPackCommit reindexes the locations a journaled pack commit covers
func (s *Store) applyPackCommit(ctx context.Context, e *model.JournalEntry) error {
	locations, err := readPackLocations(ctx, s.backend, e.Pack)
	if err != nil {
		return err
	}
	for key, loc := range locations {
		if err = s.ix.Set(key, loc); err != nil {
			return err
		}
	}
	return nil
}

// syncPacks folds every pack header into the location index. The index is
// disposable, so an open must be able to rebuild pack locations even when
// the pack commits are already behind a checkpoint.
func (s *Store) syncPacks(ctx context.Context) error {
	packs, err := s.listPacks(ctx)
	if err != nil {
		return err
	}
	for _, pack := range packs {
		locations, err := readPackLocations(ctx, s.backend, pack)
		if err != nil {
			s.l.Warn("skipping unreadable pack", zap.String("pack", pack), zap.Error(err))
			continue
		}
		for key, loc := range locations {
			ok, err := s.ix.Has(key)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if err = s.ix.Set(key, loc); err != nil {
				return err
			}
		}
	}
	return nil
}

// listPacks enumerates pack files under the store root
func (s *Store) listPacks(ctx context.Context) ([]string, error) {
	var (
		packs []string
		token string
	)
	for {
		keys, next, err := s.backend.KeysPrefix(ctx, token, model.PackPrefix, "", 1000)
		if err != nil {
			return nil, err
		}
		packs = append(packs, keys...)
		if next == "" {
			break
		}
		token = next
	}
	return packs, nil
}
