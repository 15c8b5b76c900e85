/*
Package chunkfile implements a persistent, hierarchical chunk format: a
forest of tagged binary records which is built in memory, written to a
single file with links stored as relative offsets, and loaded back by
reading the file into one buffer and fixing those offsets up in place.

Data Structure Documentation

File

A file contains a file header followed by the root chain of chunks. All
integers are stored little-endian.

    File layout:
    +-------------+---------+---------+---------+
    | file header | chunk 1 |   ...   | chunk n |
    +-------------+---------+---------+---------+

    File header:
    +------------------------+----------------+----------------------+
    | magic 'MCHK' (4 bytes) | size (8 bytes) | root count (4 bytes) |
    +------------------------+----------------+----------------------+

The size is the number of bytes following the header, the root count the
length of the root chain.

Chunk

A chunk comprises of a node header and the payload, immediately followed
by the chunks of its child chain, if any. The next sibling starts right
after the last descendant.

    Chunk layout:
    +-------------+---------+---------+-------+---------+
    | node header | payload | child 1 |  ...  | child n |
    +-------------+---------+---------+-------+---------+

    Node header:
    +---------------+-----------------------+------------------------+----------------------+---------------------+
    | tag (4 bytes) | child count (4 bytes) | payload size (8 bytes) | child link (8 bytes) | next link (8 bytes) |
    +---------------+-----------------------+------------------------+----------------------+---------------------+

Links are byte offsets relative to the end of the file header. Absent
links are stored as 0xFFFFFFFFFFFFFFFF. The child count is the number of
direct children, the payload size covers the chunk's own payload only.

On load, every link is validated and rewritten into an absolute position
within the loaded buffer, so chunks can be navigated without further
decoding.
*/
package chunkfile
