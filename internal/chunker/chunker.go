// Package chunker 将长文本切分为带重叠的有界分块。
package chunker

import "doc-qa-go/internal/loader"

// Chunk 是嵌入与检索的基本单位：一段有界文本及其来源元数据。
type Chunk struct {
	Index int // 全文档内的分块序号，从 0 开始
	Page  int
	Text  string
}

// Splitter 按固定窗口大小与重叠量切分文本。
// 大小与重叠以 rune 计，避免把多字节字符切坏。
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter 创建一个 Splitter。size 非正时取 1000；
// overlap 非法（负数或不小于 size）时退化为无重叠切分。
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{chunkSize: size, chunkOverlap: overlap}
}

// Split 将有序段落切分为有序分块，分块序号跨段落连续。
// 空输入返回空结果。
func (s *Splitter) Split(segments []loader.Segment) []Chunk {
	var chunks []Chunk
	index := 0
	for _, seg := range segments {
		for _, text := range s.splitRunes(seg.Text) {
			chunks = append(chunks, Chunk{Index: index, Page: seg.Page, Text: text})
			index++
		}
	}
	return chunks
}

// splitRunes 以 step = size - overlap 滑动窗口切分。
// 相邻分块共享 overlap 个 rune；去掉重叠后按序拼接可还原原文。
func (s *Splitter) splitRunes(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.chunkSize - s.chunkOverlap
	var parts []string
	for i := 0; i < len(runes); i += step {
		end := i + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return parts
}
