package analysis

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// ComputePHash derives the persisted perceptual fingerprint: the image is
// forced to 32x32, reduced to grayscale, thresholded against its own average
// into a 1024-bit map, and the bit-packed buffer is summarized as an MD5 hex
// digest. Identical bit maps produce identical digests; the MD5 step does not
// preserve closeness, so bit maps that differ in even one position yield
// unrelated digests.
func ComputePHash(data []byte) (string, error) {
	img, err := decodeImage(data)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Resize(img, 32, 32, imaging.Lanczos)
	gray := grayFrom(resized)
	mean, _ := gray.meanStdDev()

	packed := make([]byte, len(gray.pix)/8)
	for i, v := range gray.pix {
		if v >= mean {
			packed[i/8] |= 1 << (i % 8)
		}
	}

	sum := md5.Sum(packed)
	return hex.EncodeToString(sum[:]), nil
}

// HammingDistanceHex expands each hex digit to four binary positions and
// counts the differing ones. Unequal lengths count every unpaired bit.
func HammingDistanceHex(a, b string) int {
	distance := 0
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		av := hexNibble(a[i])
		bv := hexNibble(b[i])
		diff := av ^ bv
		for diff != 0 {
			distance += int(diff & 1)
			diff >>= 1
		}
	}
	if len(a) != len(b) {
		longer := len(a) + len(b) - 2*n
		distance += longer * 4
	}
	return distance
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// DuplicateCandidate is the projection of an accepted record used for
// duplicate comparison.
type DuplicateCandidate struct {
	ID           string
	OriginalName string
	PHash        string
}

// CheckDuplicate compares the new image's fingerprint and filename against the
// accepted corpus. An exact case-insensitive filename match short-circuits the
// hash comparison. The caller excludes the record under analysis.
func CheckDuplicate(hash, originalName string, candidates []DuplicateCandidate, t Tunables) Verdict {
	lowerName := strings.ToLower(originalName)
	for _, c := range candidates {
		if lowerName != "" && strings.ToLower(c.OriginalName) == lowerName {
			return duplicateVerdict(hash, c, 0)
		}
	}
	for _, c := range candidates {
		if c.PHash == "" {
			continue
		}
		if d := HammingDistanceHex(hash, c.PHash); d <= t.PHashMaxDistance {
			return duplicateVerdict(hash, c, d)
		}
	}
	return Accepted(map[string]interface{}{"pHash": hash})
}

func duplicateVerdict(hash string, c DuplicateCandidate, distance int) Verdict {
	msg := fmt.Sprintf("This image appears to be a duplicate of %s (%s).", c.ID, c.OriginalName)
	return Rejected(CodeDuplicateImageDetected, msg, map[string]interface{}{
		"pHash":     hash,
		"similarTo": c.ID,
		"distance":  distance,
	})
}
