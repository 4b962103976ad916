package session

import (
	"testing"

	"github.com/matryer/is"
)

func TestSegmenterFeedsCompleteSentence(t *testing.T) {
	is := is.New(t)
	seg := newSegmenter()

	segs := seg.Feed("你好。")
	is.Equal(len(segs), 1)
	is.Equal(segs[0].Text, "你好")
	is.Equal(segs[0].TextIndex, 1)
}

func TestSegmenterBuffersUntilTerminator(t *testing.T) {
	is := is.New(t)
	seg := newSegmenter()

	is.Equal(len(seg.Feed("你")), 0)
	is.Equal(len(seg.Feed("好")), 0)

	segs := seg.Feed("！今天天气不错。")
	is.Equal(len(segs), 1)
	is.Equal(segs[0].Text, "你好！今天天气不错")
}

func TestSegmenterDenseIncreasingIndex(t *testing.T) {
	is := is.New(t)
	seg := newSegmenter()

	first := seg.Feed("第一句。")
	second := seg.Feed("第二句。")
	is.Equal(first[0].TextIndex, 1)
	is.Equal(second[0].TextIndex, 2)
}

func TestSegmenterFlushEmitsTrailingText(t *testing.T) {
	is := is.New(t)
	seg := newSegmenter()

	is.Equal(len(seg.Feed("没有结尾标点")), 0)
	final := seg.Flush()
	is.Equal(len(final), 1)
	is.Equal(final[0].Text, "没有结尾标点")
}

func TestSegmenterFlushEmptyBufferYieldsNothing(t *testing.T) {
	is := is.New(t)
	seg := newSegmenter()
	is.Equal(len(seg.Flush()), 0)
}
