// Package compiler translates a small C subset into x86-64 assembly
// (Intel syntax, System V calling convention).
//
// Pipeline: source → Lex → Parse (with scope resolution) → Generate → assembly text
package compiler
